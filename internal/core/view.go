package core

import "planningsync/pkg/domain"

// OpenEditor marks an entity as open in the detail editor.
func (tx *Transaction) OpenEditor(itemType EntityType, itemID string) {
	tx.state.editor = EditorState{Opened: true, ItemType: itemType, ItemID: itemID}
	tx.recordChange(Change{Entity: itemType, ID: itemID})
}

// CloseEditor closes the detail editor.
func (tx *Transaction) CloseEditor() {
	tx.state.editor = EditorState{}
	tx.recordChange(Change{})
}

// closeEditorFor force-closes the editor when the named entity is the one
// currently open. Spiking the open item must not leave a stale editor.
func (tx *Transaction) closeEditorFor(itemType EntityType, itemID string) {
	editor := tx.state.editor
	if editor.Opened && editor.ItemType == itemType && editor.ItemID == itemID {
		tx.state.editor = EditorState{}
	}
}

// ShowModal opens the notification modal.
func (tx *Transaction) ShowModal(payload domain.ShowModalPayload) {
	tx.state.modal = ModalState{
		Open:      true,
		ModalType: payload.ModalType,
		Title:     payload.Title,
		Body:      payload.Body,
	}
	tx.recordChange(Change{Action: domain.ActionShowModal})
}

// HideModal closes the notification modal.
func (tx *Transaction) HideModal() {
	tx.state.modal = ModalState{}
	tx.recordChange(Change{Action: domain.ActionHideModal})
}

// SetEventsSpikeFilter sets the spike filter driving event list membership.
func (tx *Transaction) SetEventsSpikeFilter(filter SpikeFilter) {
	tx.state.search.EventsSpikeFilter = filter
	tx.recordChange(Change{Entity: EntityEvent})
}

// SetPlanningsSpikeFilter sets the spike filter driving planning list
// membership.
func (tx *Transaction) SetPlanningsSpikeFilter(filter SpikeFilter) {
	tx.state.search.PlanningsSpikeFilter = filter
	tx.recordChange(Change{Entity: EntityPlanning})
}

package tree

import (
	"fmt"

	"conntree/internal/domain"
)

// ConnectionEdit carries the connection properties to change; nil fields are
// left alone.
type ConnectionEdit struct {
	Description *string
	Protocol    *domain.Protocol
	Hostname    *string
	Username    *string
	Password    *string
	Port        *int
}

func (store *Store) UpdateConnection(id string, edit ConnectionEdit) error {
	node, err := store.lookup(id)
	if err != nil {
		return fmt.Errorf("edit: %w", err)
	}
	if node.Kind != domain.KindConnection {
		return fmt.Errorf("edit: %w", kindError(node))
	}
	if edit.Port != nil && (*edit.Port < 0 || *edit.Port > 65535) {
		return fmt.Errorf("edit: port %d out of range: %w", *edit.Port, domain.ErrInvalidTarget)
	}
	if edit.Description != nil {
		node.Description = *edit.Description
	}
	if edit.Protocol != nil {
		node.Protocol = *edit.Protocol
	}
	if edit.Hostname != nil {
		node.Hostname = *edit.Hostname
	}
	if edit.Username != nil {
		node.Username = *edit.Username
	}
	if edit.Password != nil {
		node.Password = *edit.Password
	}
	if edit.Port != nil {
		node.Port = *edit.Port
	}
	return nil
}

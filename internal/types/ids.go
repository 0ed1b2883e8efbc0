// internal/types/ids.go
package types

import "github.com/google/uuid"

type TransferID string

func NewTransferID() TransferID {
	return TransferID(uuid.New().String())
}

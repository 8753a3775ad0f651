package repoargs

import "github.com/google/uuid"

// DedupResult результат попытки захватить ключ дедупликации покупки.
// Если Acquired == false и OrderID не пустой, покупка с этим ключом уже завершена.
type DedupResult struct {
	Acquired bool
	OrderID  uuid.UUID
}

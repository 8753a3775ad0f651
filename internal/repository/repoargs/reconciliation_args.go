package repoargs

import "encoding/json"

type ReconciliationCreate struct {
	Kind      string
	Reference string
	Payload   json.RawMessage
	Error     string
}

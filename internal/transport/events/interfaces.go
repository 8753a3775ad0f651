package events

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

// Conn часть *nats.Conn, которая нужна публикатору.
type Conn interface {
	Publish(subject string, data []byte) error
}

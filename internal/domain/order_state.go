package domain

import "fmt"

type orderTransitionKey struct {
	from  OrderStatus
	event OrderEvent
}

// orderTransitions полная таблица переходов заказа. Всё, чего здесь нет, запрещено.
var orderTransitions = map[orderTransitionKey]OrderStatus{
	{OrderStatusPending, OrderEventPaymentConfirmed}: OrderStatusPaid,
	{OrderStatusPending, OrderEventCancelled}:        OrderStatusCancelled,

	{OrderStatusPaid, OrderEventDelivered}: OrderStatusDelivered,
	{OrderStatusPaid, OrderEventConfirmed}: OrderStatusCompleted,
	{OrderStatusPaid, OrderEventDisputed}:  OrderStatusDisputed,
	{OrderStatusPaid, OrderEventCancelled}: OrderStatusCancelled,

	{OrderStatusDelivered, OrderEventConfirmed}: OrderStatusCompleted,
	{OrderStatusDelivered, OrderEventDisputed}:  OrderStatusDisputed,

	{OrderStatusDisputed, OrderEventResolvedComplete}: OrderStatusCompleted,
	{OrderStatusDisputed, OrderEventResolvedCancel}:   OrderStatusCancelled,
}

// NextOrderStatus возвращает статус, в который переходит заказ из from по событию event,
// или ErrInvalidTransition.
func NextOrderStatus(from OrderStatus, event OrderEvent) (OrderStatus, error) {
	to, ok := orderTransitions[orderTransitionKey{from: from, event: event}]
	if !ok {
		return "", fmt.Errorf("%w: %s -(%s)->", ErrInvalidTransition, from, event)
	}
	return to, nil
}

// MoneyMoved сообщает, были ли уже проведены деньги по заказу в статусе s, то есть нужен ли возврат при отмене.
func (s OrderStatus) MoneyMoved() bool {
	return s == OrderStatusPaid || s == OrderStatusDelivered || s == OrderStatusDisputed
}

package assignment

type CreatedEvent struct {
	Result Assignment
}

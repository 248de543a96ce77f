package compiler

// semaphore bounds how many units are compiled at once. Each in-flight
// unit holds one token for the duration of its compile.
type semaphore struct {
	tokens chan struct{}
}

func newSemaphore(capacity int) *semaphore {
	return &semaphore{
		tokens: make(chan struct{}, capacity),
	}
}

func (self *semaphore) Lock() {
	self.tokens <- struct{}{}
}

func (self *semaphore) Unlock() {
	<-self.tokens
}

package stream

import "fmt"

// Latch records the first failure of a parser. Once tripped it stays tripped.
type Latch struct {
	err error
}

// Trip records err as the failure when none was recorded and returns it.
func (l *Latch) Trip(err error) error {
	if l.err == nil {
		l.err = err
	}
	return err
}

// Check fails fast when the latch is tripped.
func (l *Latch) Check() error {
	if l.err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidStream, l.err)
}

func (l *Latch) IsInputValid() bool {
	return l.err == nil
}

func (l *Latch) ErrorMessage() string {
	if l.err == nil {
		return ""
	}
	return l.err.Error()
}

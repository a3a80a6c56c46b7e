package models

import "fmt"

// ExitStatus is returned when a guest program terminates itself.
type ExitStatus int

func (e ExitStatus) Error() string {
	return fmt.Sprintf("exit %d", e)
}

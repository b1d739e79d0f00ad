package graph

import "fmt"

// CycleError reports that the reference graph is not acyclic.
type CycleError struct {
	Address string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency detected involving %s", e.Address)
}

// DanglingReferenceError reports a reference to a name that is not declared
// anywhere in the configuration.
type DanglingReferenceError struct {
	Address   string
	Reference string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s references undeclared %s", e.Address, e.Reference)
}

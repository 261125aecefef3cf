// Package crosscaterrors provides examples of structured error handling.
package crosscaterrors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := crosscaterrors.New(crosscaterrors.ErrorTypeNotFound, "view does not exist").
		WithDetail("view_id", "view-7")

	fmt.Println(err.Error())

	// Output:
	// not_found: view does not exist
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := crosscaterrors.Wrap(io.ErrUnexpectedEOF, crosscaterrors.ErrorTypeFile, "failed to read checkpoint").
		WithDetail("path", "model.ckpt")

	if crosscaterrors.IsType(err, crosscaterrors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}
	fmt.Println(err.Error())

	// Output:
	// This is a file error
	// file: failed to read checkpoint: unexpected EOF
}

// ExampleNewOverlappingVariables shows the details carried by an overlap error.
func ExampleNewOverlappingVariables() {
	err := crosscaterrors.NewOverlappingVariables(
		[]string{"x", "y"}, []string{"y", "z"}, []string{"y"})

	overlap, _ := crosscaterrors.Detail(err, "overlap")
	fmt.Println(err.Type, overlap)

	// Output:
	// overlapping_variables [y]
}

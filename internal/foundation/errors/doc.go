// Package errors provides the classified error primitives used across monobuild.
//
// A ClassifiedError carries a category (what part of the system failed), a
// severity and a retry strategy, plus free-form context. Errors are created
// through the fluent ErrorBuilder:
//
//	err := errors.NewError(errors.CategoryGit, "walk history failed").
//		WithCause(cause).
//		WithContext("branch", branch).
//		Build()
//
// The CLI adapter turns a classified error into an exit code and a message.
package errors

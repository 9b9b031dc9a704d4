// Package testutil provides shared helpers for tests across the
// project: deadline-bound contexts and polling assertions. Mock
// implementations live in the mocks subpackage.
package testutil

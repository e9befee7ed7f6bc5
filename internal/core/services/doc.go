// Package services is the core of memex.
//
// The Gardener walks archives and files proposals. ApprovalService is the
// only code that creates, replaces or retires vector nodes. RetrievalService
// reads both layers and degrades to whichever search path still works.
// Everything talks to storage and models through the driven ports.
package services

// Package campaign implements campaign lifecycle management.
//
// The service layer contains the business rules for creating, editing,
// scheduling, queueing and cancelling announcement campaigns. Sending
// itself is done by the dispatch service; this package only validates
// that a campaign can be dispatched and enqueues the job.
//
// Repository implementations live in repository/postgres/ and repository/memory/.
package campaign

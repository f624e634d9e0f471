// Package systems defines the client contract for the two backend systems
// of record: the CRM and the policy-management system.
//
// Client is the task CRUD contract; CallSource fetches completed calls.
// The concrete HTTP clients authenticate with bearer API keys, rate-limit
// outbound requests, and route every call through the shared Retryer, which
// retries only failures classified as retryable (429 and 5xx responses,
// RetryableError) with capped exponential backoff, honoring Retry-After
// hints.
//
// MemoryClient and MemoryCallSource are in-memory fakes for tests, with
// injectable per-call failures.
package systems

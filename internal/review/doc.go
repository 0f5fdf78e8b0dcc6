// Package review analyzes contracts for risky clauses.
//
// Clauses are split into fixed-size batches and sent to a chat-completion
// endpoint with bounded concurrency under a single run deadline. Each batch
// response is repaired and validated (see Parser) before its findings are
// kept; clause text in findings always comes from the submitted contract,
// never from the model.
//
// A batch that fails or returns unusable output only lowers the success
// rate. When the deadline elapses, completed batches are kept and the rest
// are abandoned. After the batch phase a summary checklist is generated;
// if that call fails the result carries ChecklistFailed.
//
// Aggregate computes run analytics from the scheduler outcome.
package review

// Package structured coerces a free-text model into schema-valid data.
//
// Generate drives a bounded attempt loop around an llm.Transport:
//
//  1. The first attempt sends the caller's system/prompt (or messages).
//  2. Each later attempt sends a freshly built conversation: the base turns,
//     every prior raw output as an assistant turn, and a corrective user turn
//     naming the extraction or validation error.
//  3. Transport failures are retried without a repair turn when their code is
//     retriable; CANCELLED ends the loop at once.
//  4. Output is recovered with llm.ParseLoosely and checked by a Validator.
//
// At most MaxAttempts transport calls are made, strictly one after another.
// The engine never sleeps between attempts and never synthesizes fallback
// content; that policy belongs to callers, which inspect the returned Result.
package structured

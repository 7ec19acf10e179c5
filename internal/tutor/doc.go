// Package tutor orchestrates the learning workflow on top of the structured
// generation engine: chapter plans, chapter content, quiz questions, quiz
// grading and repository Q&A.
//
// Every operation either returns validated model output or degrades to the
// deterministic content from package learning, reporting which one through
// Outcome. Cancellation is the only error: a cancelled caller never receives
// fallback content.
package tutor

// Package main hosts the repolearn CLI entrypoint and command graph.
//
// The Cobra command tree ingests a public GitHub repository, generates a
// chapter plan, chapters, quizzes and gradings through the tutor, and answers
// questions about a chapter. Generated artifacts are cached in the local
// store so later commands build on earlier ones. Configuration resolution,
// logging setup and store access are centralized in commandContext.
package main

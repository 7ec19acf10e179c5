package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"repolearn/internal/config"
	"repolearn/internal/learning"
	"repolearn/internal/llm"
	"repolearn/internal/services"
	"repolearn/internal/testsupport"
)

const (
	demoURL = "https://github.com/octo/demo"

	planReply    = `[{"schemaVersion":1,"id":"intro","title":"Intro","summary":"Start here","objectives":["Run it"],"readingItems":[{"id":"r1","title":"Readme","path":"README.md"}],"tasks":[{"id":"t1","title":"Run the demo"}]}]`
	chapterReply = `{"schemaVersion":1,"id":"intro","title":"Intro","summary":"Start here","content":"The entry point is main.go.","objectives":["Run it"],"readingItems":[{"id":"r1","title":"Readme","path":"README.md"}],"tasks":[{"id":"t1","title":"Run the demo"}]}`
	quizReply    = `{"schemaVersion":1,"questions":[{"id":"a","prompt":"What starts the program?"},{"id":"b","prompt":"Where is it documented?"},{"id":"c","prompt":"How do you run it?"}]}`
	gradeReply   = `{"schemaVersion":1,"responses":[` +
		`{"questionId":"a","answer":"main.go","score":1,"feedback":"right"},` +
		`{"questionId":"b","answer":"the readme","score":1,"feedback":"right"},` +
		`{"questionId":"c","answer":"go run .","score":1,"feedback":"right"}],"score":1,"feedback":"great work"}`
	askReply = `{"answer":"Start in main.go.","citations":["main.go"]}`
)

type cliTestEnv struct {
	configPath string
	baseDir    string
	transport  *testsupport.ScriptedTransport
}

func setupCLITestEnv(t *testing.T, steps ...testsupport.Step) *cliTestEnv {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(serveDemoRepo))
	t.Cleanup(server.Close)

	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, testsupport.WithGitHubServer(server.URL))
	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		configPath: configPath,
		baseDir:    base,
		transport:  testsupport.NewScriptedTransport(steps...),
	}
}

func serveDemoRepo(w http.ResponseWriter, r *http.Request) {
	files := map[string]string{
		"README.md": "# Demo\nRun with go run .\n",
		"main.go":   "package main\n\nfunc main() {}\n",
	}
	switch {
	case r.URL.Path == "/repos/octo/demo":
		fmt.Fprint(w, `{"default_branch":"main","description":"Demo repository","private":false}`)
	case strings.HasPrefix(r.URL.Path, "/repos/octo/demo/git/trees/"):
		fmt.Fprintf(w, `{"truncated":false,"tree":[{"path":"README.md","type":"blob","size":%d},{"path":"main.go","type":"blob","size":%d}]}`,
			len(files["README.md"]), len(files["main.go"]))
	case strings.HasPrefix(r.URL.Path, "/raw/octo/demo/main/"):
		content, ok := files[strings.TrimPrefix(r.URL.Path, "/raw/octo/demo/main/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, content)
	default:
		http.NotFound(w, r)
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	testsupport.WriteFile(t, path, string(data))
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	var transport llm.Transport
	if env != nil {
		transport = env.transport
	}
	cmd := buildRootCommand(transport)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if env != nil {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestSchemaCommand(t *testing.T) {
	out, _, err := runCLI(t, nil, "schema")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	for _, name := range learning.SchemaNames() {
		requireContains(t, out, name)
	}

	out, _, err = runCLI(t, nil, "schema", learning.SchemaQAAnswer)
	if err != nil {
		t.Fatalf("schema qa_answer: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("schema output is not JSON: %v", err)
	}

	_, _, err = runCLI(t, nil, "schema", "nope")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("REPOLEARN_LLM_API_KEY", "super-secret")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err := runCLI(t, nil, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, nil, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}

	out, _, err = runCLI(t, env, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "max_context_chars")
	requireContains(t, out, "# store: "+filepath.Join(env.baseDir, "data", "repolearn.db"))
	requireContains(t, out, "********")
	if strings.Contains(out, "super-secret") {
		t.Fatalf("config show leaked a secret:\n%s", out)
	}
}

func TestRejectsUnsupportedFormat(t *testing.T) {
	_, _, err := runCLI(t, nil, "--format", "xml", "schema")
	if !errors.Is(err, services.ErrValidation) || services.ExitCode(err) != 2 {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInvalidRepoURL(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, env, "ingest", "https://gitlab.com/octo/demo")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	requireContains(t, err.Error(), "github.com")
}

func TestIngestCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "ingest", demoURL)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	requireContains(t, out, "README.md")
	requireContains(t, out, "main.go")
	requireContains(t, out, "Selected 2 of 2 files")

	out, _, err = runCLI(t, env, "--format", "json", "ingest", demoURL, "--max-files", "1")
	if err != nil {
		t.Fatalf("ingest json: %v", err)
	}
	var payload struct {
		SelectedPaths []string `json:"selectedPaths"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode ingest json: %v", err)
	}
	if len(payload.SelectedPaths) != 1 || payload.SelectedPaths[0] != "README.md" {
		t.Fatalf("unexpected selection %v", payload.SelectedPaths)
	}
}

func TestLearningFlow(t *testing.T) {
	env := setupCLITestEnv(t,
		testsupport.Reply(planReply),
		testsupport.Reply(chapterReply),
		testsupport.Reply(quizReply),
		testsupport.Reply(gradeReply),
		testsupport.Reply(askReply),
	)

	out, _, err := runCLI(t, env, "plan", demoURL)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	requireContains(t, out, "intro")
	if _, _, err := runCLI(t, env, "plan", demoURL); err != nil {
		t.Fatalf("cached plan: %v", err)
	}
	if calls := len(env.transport.Calls()); calls != 1 {
		t.Fatalf("expected cached plan to skip the model, got %d calls", calls)
	}

	saveDir := filepath.Join(env.baseDir, "chapters")
	out, _, err = runCLI(t, env, "chapter", demoURL, "intro", "--save-dir", saveDir)
	if err != nil {
		t.Fatalf("chapter: %v", err)
	}
	requireContains(t, out, "# Intro")
	requireContains(t, out, "The entry point is main.go.")
	requireContains(t, out, "- [ ] Run the demo")
	saved, err := os.ReadFile(filepath.Join(saveDir, "octo_demo-intro.md"))
	if err != nil {
		t.Fatalf("read saved chapter: %v", err)
	}
	requireContains(t, string(saved), "# Intro")

	if _, _, err := runCLI(t, env, "chapter", demoURL, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected unknown chapter to be not found, got %v", err)
	}

	out, _, err = runCLI(t, env, "--format", "json", "quiz", demoURL, "intro")
	if err != nil {
		t.Fatalf("quiz: %v", err)
	}
	var attempt learning.QuizAttempt
	if err := json.Unmarshal([]byte(out), &attempt); err != nil {
		t.Fatalf("decode attempt: %v", err)
	}
	if attempt.Status != learning.AttemptInProgress || len(attempt.Questions) != 3 {
		t.Fatalf("unexpected attempt %+v", attempt)
	}

	partial := filepath.Join(env.baseDir, "partial.yaml")
	testsupport.WriteFile(t, partial, "a: main.go\nb: the readme\n")
	_, _, err = runCLI(t, env, "grade", demoURL, attempt.ID, "--answers", partial)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected unanswered questions to fail validation, got %v", err)
	}
	requireContains(t, err.Error(), "c")

	rest := filepath.Join(env.baseDir, "rest.yaml")
	testsupport.WriteFile(t, rest, "c: go run .\n")
	out, _, err = runCLI(t, env, "grade", demoURL, attempt.ID, "--answers", rest)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	requireContains(t, out, "Overall: 100%")
	requireContains(t, out, "great work")

	out, _, err = runCLI(t, env, "attempts", demoURL, "intro")
	if err != nil {
		t.Fatalf("attempts: %v", err)
	}
	requireContains(t, out, attempt.ID)
	requireContains(t, out, "completed")
	requireContains(t, out, "3/3")

	out, _, err = runCLI(t, env, "ask", demoURL, "intro", "Where", "does", "it", "start?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	requireContains(t, out, "Start in main.go.")
	requireContains(t, out, "  - main.go")

	calls := env.transport.Calls()
	if len(calls) != 5 {
		t.Fatalf("expected 5 model calls, got %d", len(calls))
	}
	requireContains(t, calls[3].Prompt, "go run .")
	requireContains(t, calls[4].Prompt, "Where does it start?")
}

func TestPartialGradeRecordsEveryScoredQuestion(t *testing.T) {
	env := setupCLITestEnv(t,
		testsupport.Reply(planReply),
		testsupport.Reply(chapterReply),
		testsupport.Reply(quizReply),
		testsupport.Fail(llm.CodeUpstreamUnauthorized),
	)

	out, _, err := runCLI(t, env, "--format", "json", "quiz", demoURL, "intro")
	if err != nil {
		t.Fatalf("quiz: %v", err)
	}
	var attempt learning.QuizAttempt
	if err := json.Unmarshal([]byte(out), &attempt); err != nil {
		t.Fatalf("decode attempt: %v", err)
	}

	partial := filepath.Join(env.baseDir, "partial.yaml")
	testsupport.WriteFile(t, partial, "a: main.go starts the program\nb: the readme\n")
	out, _, err = runCLI(t, env, "--format", "json", "grade", demoURL, attempt.ID, "--answers", partial, "--allow-partial")
	if err != nil {
		t.Fatalf("grade --allow-partial: %v", err)
	}
	var graded learning.QuizAttempt
	if err := json.Unmarshal([]byte(out), &graded); err != nil {
		t.Fatalf("decode graded attempt: %v", err)
	}
	if len(graded.Responses) != 3 {
		t.Fatalf("expected every question in the graded attempt, got %+v", graded.Responses)
	}
	unansweredResponse := graded.Responses[2]
	if unansweredResponse.QuestionID != "c" || unansweredResponse.Answer != "(empty)" || unansweredResponse.Score == nil {
		t.Fatalf("unexpected response for the unanswered question %+v", unansweredResponse)
	}

	out, _, err = runCLI(t, env, "attempts", demoURL, "intro")
	if err != nil {
		t.Fatalf("attempts: %v", err)
	}
	requireContains(t, out, "2/3")
}

func TestChapterRegeneratedAfterPlanChanges(t *testing.T) {
	revisedPlan := strings.Replace(planReply, `"title":"Intro"`, `"title":"Revised intro"`, 1)
	revisedChapter := strings.NewReplacer(
		`"title":"Intro"`, `"title":"Revised intro"`,
		"The entry point is main.go.", "Begin with the README.",
	).Replace(chapterReply)
	env := setupCLITestEnv(t,
		testsupport.Reply(planReply),
		testsupport.Reply(chapterReply),
		testsupport.Reply(revisedPlan),
		testsupport.Reply(revisedChapter),
	)

	if _, _, err := runCLI(t, env, "plan", demoURL); err != nil {
		t.Fatalf("plan: %v", err)
	}
	out, _, err := runCLI(t, env, "chapter", demoURL, "intro")
	if err != nil {
		t.Fatalf("chapter: %v", err)
	}
	requireContains(t, out, "The entry point is main.go.")
	if _, _, err := runCLI(t, env, "chapter", demoURL, "intro"); err != nil {
		t.Fatalf("cached chapter: %v", err)
	}
	if calls := len(env.transport.Calls()); calls != 2 {
		t.Fatalf("expected cached chapter to skip the model, got %d calls", calls)
	}

	out, _, err = runCLI(t, env, "plan", demoURL, "--refresh")
	if err != nil {
		t.Fatalf("plan --refresh: %v", err)
	}
	requireContains(t, out, "Revised intro")

	out, _, err = runCLI(t, env, "chapter", demoURL, "intro")
	if err != nil {
		t.Fatalf("chapter after new plan: %v", err)
	}
	requireContains(t, out, "# Revised intro")
	requireContains(t, out, "Begin with the README.")
	if strings.Contains(out, "The entry point is main.go.") {
		t.Fatalf("chapter from the previous plan was served: %q", out)
	}
	if calls := len(env.transport.Calls()); calls != 4 {
		t.Fatalf("expected the chapter to be regenerated, got %d calls", calls)
	}
}

func TestGenerationFallbackIsReported(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.Fail(llm.CodeUpstreamUnauthorized))

	out, _, err := runCLI(t, env, "plan", demoURL)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	requireContains(t, out, "placeholder content")
	requireContains(t, out, "chapter-1")
	requireContains(t, out, "Getting started with demo")
}

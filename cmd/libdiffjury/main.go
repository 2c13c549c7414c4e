// Package main builds the diffjury C shared library.
//
// Build with:
//
//	go build -buildmode=c-shared -o libdiffjury.so ./cmd/libdiffjury
//
// The exported functions and the result layout are declared in
// include/diffjury.h. Every pointer returned to the caller is allocated with
// C allocators and must be handed back to the matching release function
// exactly once.
package main

/*
#include <stdbool.h>
#include <stdlib.h>

typedef struct {
	bool is_good;
	int total_files;
	int analyzed_files;
	int good_files;
	int files_with_issues;
	char *files_json;
} AnalysisResult;
*/
import "C"

import (
	"context"
	"encoding/json"
	"unicode/utf8"
	"unsafe"

	"github.com/diffjury/diffjury/internal/analysis"
	"github.com/diffjury/diffjury/internal/config"
	"github.com/diffjury/diffjury/internal/gitdiff"
	"github.com/diffjury/diffjury/internal/llm"
	"github.com/diffjury/diffjury/internal/loggy"
	"github.com/diffjury/diffjury/internal/openai"
)

// newService builds an analysis service for one library call. History is
// never persisted from the C boundary; the host process owns its own storage.
func newService() (*analysis.Service, error) {
	cfg, err := config.DefaultsFromEnv()
	if err != nil {
		return nil, err
	}

	if err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	}); err != nil {
		return nil, err
	}
	logger := loggy.GetGlobalLogger()

	clientFactory := func(apiKey string) llm.Client {
		return openai.NewClientWithKey(cfg.OpenAI, apiKey)
	}

	return analysis.NewService(cfg, gitdiff.NewService(logger), clientFactory, nil, logger), nil
}

// goString converts a C string argument, rejecting NULL and invalid UTF-8
func goString(s *C.char) (string, bool) {
	if s == nil {
		return "", false
	}
	str := C.GoString(s)
	if !utf8.ValidString(str) {
		return "", false
	}
	return str, true
}

// fileEntry is the boundary shape of one per-file verdict: path and is_good
// always, issue_description only when the file is not good. Nothing else
// crosses the boundary.
type fileEntry struct {
	Path   string `json:"path"`
	IsGood bool   `json:"is_good"`
	Issue  string `json:"issue_description,omitempty"`
}

func detailEntries(details []analysis.FileVerdict) []fileEntry {
	entries := make([]fileEntry, len(details))
	for i, d := range details {
		entries[i] = fileEntry{Path: d.Path, IsGood: d.IsGood, Issue: d.Issue}
	}
	return entries
}

//export analyze_repository_changes
func analyze_repository_changes(apiKey, repoURL, olderCommit, newerCommit *C.char) *C.AnalysisResult {
	key, ok := goString(apiKey)
	if !ok {
		return nil
	}
	url, ok := goString(repoURL)
	if !ok {
		return nil
	}
	older, ok := goString(olderCommit)
	if !ok {
		return nil
	}
	newer, ok := goString(newerCommit)
	if !ok {
		return nil
	}

	service, err := newService()
	if err != nil {
		return nil
	}

	verdict, err := service.AnalyzeRepository(context.Background(), &analysis.Request{
		RepoURL:     url,
		OlderCommit: older,
		NewerCommit: newer,
		APIKey:      key,
	})
	if err != nil {
		// Run-level failure: no partial result crosses the boundary
		loggy.Error("Analysis failed", "error", err)
		return nil
	}

	filesJSON, err := json.Marshal(detailEntries(verdict.Details))
	if err != nil {
		loggy.Error("Failed to encode verdict details", "error", err)
		return nil
	}

	result := (*C.AnalysisResult)(C.malloc(C.sizeof_AnalysisResult))
	if result == nil {
		return nil
	}

	result.is_good = C.bool(verdict.IsGood)
	result.total_files = C.int(verdict.TotalFiles)
	result.analyzed_files = C.int(verdict.AnalyzedFiles)
	result.good_files = C.int(verdict.GoodFiles)
	result.files_with_issues = C.int(verdict.FilesWithIssues)
	result.files_json = C.CString(string(filesJSON))

	return result
}

//export release_analysis_result
func release_analysis_result(result *C.AnalysisResult) {
	if result == nil {
		return
	}
	if result.files_json != nil {
		C.free(unsafe.Pointer(result.files_json))
	}
	C.free(unsafe.Pointer(result))
}

//export ask_ai
func ask_ai(prompt, apiKey *C.char) *C.char {
	question, ok := goString(prompt)
	if !ok {
		return nil
	}
	key, ok := goString(apiKey)
	if !ok {
		return nil
	}

	service, err := newService()
	if err != nil {
		return nil
	}

	answer, err := service.Ask(context.Background(), key, question)
	if err != nil {
		loggy.Error("Ask failed", "error", err)
		return nil
	}

	return C.CString(answer)
}

//export release_string
func release_string(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

// The helpers below drive the exported entry points with optional arguments
// (nil maps to C NULL) so the package tests can cover the boundary; test
// files themselves cannot use cgo.

func cString(s *string) *C.char {
	if s == nil {
		return nil
	}
	return C.CString(*s)
}

func freeCString(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

// callAnalyze invokes analyze_repository_changes in the exported argument
// order and reports whether a result came back, releasing it if so.
func callAnalyze(apiKey, repoURL, olderCommit, newerCommit *string) bool {
	key := cString(apiKey)
	url := cString(repoURL)
	older := cString(olderCommit)
	newer := cString(newerCommit)
	defer func() {
		freeCString(key)
		freeCString(url)
		freeCString(older)
		freeCString(newer)
	}()

	result := analyze_repository_changes(key, url, older, newer)
	if result == nil {
		return false
	}
	release_analysis_result(result)
	return true
}

// callAsk invokes ask_ai in the exported argument order, returning the answer
// and whether one came back. The answer is released before returning.
func callAsk(prompt, apiKey *string) (string, bool) {
	p := cString(prompt)
	key := cString(apiKey)
	defer func() {
		freeCString(p)
		freeCString(key)
	}()

	answer := ask_ai(p, key)
	if answer == nil {
		return "", false
	}
	out := C.GoString(answer)
	release_string(answer)
	return out, true
}

// stringRoundTrip allocates a C copy of s, reads it back and releases it
func stringRoundTrip(s string) string {
	cs := C.CString(s)
	out := C.GoString(cs)
	release_string(cs)
	return out
}

// resultReleaseRoundTrip allocates a result the way the analyze export does
// and releases it through the exported free path
func resultReleaseRoundTrip(filesJSON string) {
	result := (*C.AnalysisResult)(C.malloc(C.sizeof_AnalysisResult))
	result.is_good = C.bool(true)
	result.total_files = C.int(0)
	result.analyzed_files = C.int(0)
	result.good_files = C.int(0)
	result.files_with_issues = C.int(0)
	result.files_json = C.CString(filesJSON)
	release_analysis_result(result)
}

func releaseNilResult() { release_analysis_result(nil) }

func releaseNilString() { release_string(nil) }

func main() {}

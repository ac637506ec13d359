package cardkit

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

type memRecorder struct {
	mu      sync.Mutex
	records []PassRecord
	err     error
}

func (r *memRecorder) RecordPass(rec PassRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

func TestGenerateWalletPass_Signed(t *testing.T) {
	// WHY: With signing material available the result is the signed variant
	// with the pkpass content type, and the issued token is recorded.
	t.Parallel()

	pki := generateTestPKI(t)
	rec := &memRecorder{}
	gen := &Generator{
		Builder:  testBuilder(),
		Packager: NewPackager(),
		Signing:  staticMaterial{m: pki.material()},
		Recorder: rec,
	}
	result, err := gen.GenerateWalletPass(sampleContact())
	if err != nil {
		t.Fatalf("GenerateWalletPass: %v", err)
	}

	if result.Kind != PassSigned || !result.Signed() {
		t.Fatalf("kind = %v, want signed", result.Kind)
	}
	if result.Development != nil {
		t.Error("signed result must not carry a development document")
	}
	if result.ContentType() != PKPassContentType || result.Filename() != "jdoe.pkpass" {
		t.Errorf("content type %q, filename %q", result.ContentType(), result.Filename())
	}
	data, err := result.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		t.Fatal("signed bytes are not a zip archive")
	}
	files, _ := unzipBundle(t, data)
	if _, ok := files[PassFile]; !ok {
		t.Error("bundle has no pass.json")
	}
	if _, ok := files[ManifestFile]; !ok {
		t.Error("bundle has no manifest.json")
	}

	if len(rec.records) != 1 {
		t.Fatalf("recorded %d passes, want 1", len(rec.records))
	}
	got := rec.records[0]
	if got.Handle != "jdoe" || got.SerialNumber != "jdoe-1792065600000" ||
		got.AuthenticationToken != "token-fixed" || got.Kind != PassSigned {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestGenerateWalletPass_UnsignedFallback(t *testing.T) {
	// WHY: Without signing material generation must not fail; it returns the
	// unsigned variant whose JSON carries a development marker and every
	// contact field unaltered, so it can never be mistaken for a pass.
	t.Parallel()

	c := sampleContact()
	c.SocialLinks = append(c.SocialLinks, SocialLink{Platform: "GitHub", URL: "https://github.com/jdoe"})
	rec := &memRecorder{}
	gen := &Generator{Builder: testBuilder(), Signing: staticMaterial{}, Recorder: rec}

	result, err := gen.GenerateWalletPass(c)
	if err != nil {
		t.Fatalf("GenerateWalletPass: %v", err)
	}
	if result.Kind != PassUnsigned || result.Signed() || result.Data != nil {
		t.Fatalf("expected unsigned result, got %+v", result)
	}
	if result.ContentType() != "application/json" || result.Filename() != "jdoe-pass-development.json" {
		t.Errorf("content type %q, filename %q", result.ContentType(), result.Filename())
	}

	data, err := result.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if bytes.HasPrefix(data, []byte("PK")) {
		t.Fatal("development artifact must not look like a zip archive")
	}

	var doc struct {
		DevelopmentMode bool     `json:"developmentMode"`
		Type            string   `json:"type"`
		Contact         Contact  `json:"contact"`
		ProfileURL      string   `json:"profileUrl"`
		QRURL           string   `json:"qrUrl"`
		Instructions    []string `json:"instructions"`
		Pass            *Pass    `json:"pass"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("development artifact is not JSON: %v", err)
	}
	if !doc.DevelopmentMode || doc.Type != DevelopmentPassType {
		t.Errorf("missing development marker: %+v", doc)
	}
	got, want := doc.Contact, c
	if got.Handle != want.Handle || got.Name != want.Name || got.Email != want.Email ||
		got.Phone != want.Phone || got.Bio != want.Bio || got.Title != want.Title {
		t.Errorf("contact altered: got %+v, want %+v", got, want)
	}
	if len(got.SocialLinks) != len(want.SocialLinks) {
		t.Fatalf("social links: got %d, want %d", len(got.SocialLinks), len(want.SocialLinks))
	}
	for i := range want.SocialLinks {
		if got.SocialLinks[i] != want.SocialLinks[i] {
			t.Errorf("social link %d: got %+v, want %+v", i, got.SocialLinks[i], want.SocialLinks[i])
		}
	}
	if doc.ProfileURL != "https://cards.example.com/profile/jdoe" || doc.QRURL != "https://cards.example.com/api/qr/jdoe" {
		t.Errorf("urls: %q %q", doc.ProfileURL, doc.QRURL)
	}
	if len(doc.Instructions) == 0 {
		t.Error("instructions missing")
	}
	if doc.Pass == nil || doc.Pass.SerialNumber != "jdoe-1792065600000" {
		t.Errorf("assembled pass missing from artifact: %+v", doc.Pass)
	}

	if len(rec.records) != 1 || rec.records[0].Kind != PassUnsigned {
		t.Errorf("unexpected records: %+v", rec.records)
	}
}

func TestGenerateWalletPass_NilSourceIsUnsigned(t *testing.T) {
	// WHY: A generator without a signing source behaves like missing material.
	t.Parallel()
	result, err := (&Generator{}).GenerateWalletPass(Contact{Handle: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != PassUnsigned {
		t.Errorf("kind = %v, want unsigned", result.Kind)
	}
}

func TestGenerateWalletPass_FallbackLogsAtDebug(t *testing.T) {
	// WHY: The user-facing warning for a development pass belongs to the
	// caller; the library only notes the fallback at debug level.
	// Not parallel: swaps the default logger.
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	if _, err := (&Generator{}).GenerateWalletPass(Contact{Handle: "jdoe"}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "development pass") {
		t.Errorf("expected debug fallback record, got:\n%s", out)
	}
	if strings.Contains(out, "level=WARN") {
		t.Errorf("library logged a warning:\n%s", out)
	}
}

func TestGenerateWalletPass_Errors(t *testing.T) {
	// WHY: Loader failures, signing failures and recorder failures are
	// fatal; none of them may degrade to the development artifact.
	t.Parallel()

	pki := generateTestPKI(t)
	other := generateTestPKI(t)
	mismatched := &SigningMaterial{WWDR: pki.WWDR, Certificate: pki.Cert, Key: other.Key}

	tests := []struct {
		name    string
		gen     *Generator
		wantSub string
	}{
		{
			name:    "loader_error",
			gen:     &Generator{Builder: testBuilder(), Signing: staticMaterial{err: errors.New("permission denied")}},
			wantSub: "loading signing material",
		},
		{
			name:    "signing_error",
			gen:     &Generator{Builder: testBuilder(), Signing: staticMaterial{m: mismatched}},
			wantSub: "generating pass for jdoe",
		},
		{
			name:    "recorder_error",
			gen:     &Generator{Builder: testBuilder(), Recorder: &memRecorder{err: errors.New("disk full")}},
			wantSub: "recording pass",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result, err := tt.gen.GenerateWalletPass(sampleContact())
			if err == nil {
				t.Fatal("expected error")
			}
			if result != nil {
				t.Errorf("expected no result on failure, got %+v", result)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestGenerateWalletPass_Concurrent(t *testing.T) {
	// WHY: One shared Packager and Generator serve concurrent requests for
	// distinct contacts with no coordination.
	t.Parallel()

	pki := generateTestPKI(t)
	gen := &Generator{
		Builder:  &PassBuilder{BaseURL: "https://cards.example.com"},
		Packager: NewPackager(),
		Signing:  staticMaterial{m: pki.material()},
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := sampleContact()
			c.Handle = "user" + string(rune('a'+i))
			result, err := gen.GenerateWalletPass(c)
			if err != nil {
				errs <- err
				return
			}
			files, _, err := readZip(result.Data)
			if err != nil {
				errs <- err
				return
			}
			report, err := VerifyPassBundle(files)
			if err != nil {
				errs <- err
				return
			}
			if !strings.HasPrefix(report.Pass.SerialNumber, c.Handle+"-") {
				errs <- errors.New("serial does not match handle: " + report.Pass.SerialNumber)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestPassKind_String(t *testing.T) {
	// WHY: Kind strings are persisted by the pass registry.
	t.Parallel()
	if PassSigned.String() != "signed" || PassUnsigned.String() != "unsigned" {
		t.Errorf("got %q %q", PassSigned, PassUnsigned)
	}
	if got := PassKind(0).String(); got != "PassKind(0)" {
		t.Errorf("zero kind = %q", got)
	}
}

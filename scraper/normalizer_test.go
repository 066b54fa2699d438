package scraper

import (
	"strings"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
	}{
		{"slash dmy", "01/02/2025"},
		{"dash dmy", "01-02-2025"},
		{"iso", "2025-02-01"},
		{"slash ymd", "2025/02/01"},
		{"day month year", "1 February 2025"},
		{"day short month year", "01 Feb 2025"},
		{"month day year", "February 1, 2025"},
		{"labelled", "Last Date: 01/02/2025"},
		{"padded", "  01/02/2025  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.input)
			if got == nil {
				t.Fatalf("ParseDate(%q) = nil", tt.input)
			}
			if !got.Equal(want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, want)
			}
		})
	}
}

func TestParseDateRoundTrip(t *testing.T) {
	// The same calendar date must come back regardless of which pattern
	// family matched.
	inputs := []string{"15/06/2025", "2025/06/15", "15 June 2025", "June 15, 2025"}
	var first *time.Time
	for _, in := range inputs {
		got := ParseDate(in)
		if got == nil {
			t.Fatalf("ParseDate(%q) = nil", in)
		}
		if first == nil {
			first = got
			continue
		}
		if !got.Equal(*first) {
			t.Errorf("ParseDate(%q) = %v, want %v", in, got, *first)
		}
	}
}

func TestParseDateInvalid(t *testing.T) {
	for _, in := range []string{"", "not a date", "32/13/2025", "soon"} {
		if got := ParseDate(in); got != nil {
			t.Errorf("ParseDate(%q) = %v, want nil", in, got)
		}
	}
}

func TestParseFee(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   float64
		absent bool
	}{
		{"nil word", "Nil", 0, false},
		{"free", "Free", 0, false},
		{"exempt", "Exempted", 0, false},
		{"rupee symbol", "₹500", 500, false},
		{"rs prefix", "Rs. 1,200", 1200, false},
		{"plain number", "100", 100, false},
		{"decimal", "99.50", 99.50, false},
		{"sentence", "Application fee is free for women", 0, false},
		{"empty", "", 0, true},
		{"garbage", "contact office", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFee(tt.input)
			v, ok := got.Get()
			if tt.absent {
				if ok {
					t.Errorf("ParseFee(%q) = %v, want none", tt.input, v)
				}
				return
			}
			if !ok {
				t.Fatalf("ParseFee(%q) = none, want %v", tt.input, tt.want)
			}
			if v != tt.want {
				t.Errorf("ParseFee(%q) = %v, want %v", tt.input, v, tt.want)
			}
		})
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		name             string
		input            string
		wantMin, wantMax int
		noMin, noMax     bool
	}{
		{"to range", "18 to 27 years", 18, 27, false, false},
		{"dash range", "18-27", 18, 27, false, false},
		{"between", "between 18 and 27", 18, 27, false, false},
		{"salary range", "Rs. 25,500 - 81,100", 25500, 81100, false, false},
		{"max only", "maximum 30 years", 0, 30, true, false},
		{"up to", "up to 35", 0, 35, true, false},
		{"min only", "minimum 18 years", 18, 0, false, true},
		{"at least", "at least 21", 21, 0, false, true},
		{"single value", "25000", 25000, 25000, false, false},
		{"empty", "", 0, 0, true, true},
		{"no numbers", "as per rules", 0, 0, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMin, gotMax := ParseRange(tt.input)

			if v, ok := gotMin.Get(); ok != !tt.noMin {
				t.Errorf("ParseRange(%q) min present = %v, want %v", tt.input, ok, !tt.noMin)
			} else if ok && v != tt.wantMin {
				t.Errorf("ParseRange(%q) min = %d, want %d", tt.input, v, tt.wantMin)
			}

			if v, ok := gotMax.Get(); ok != !tt.noMax {
				t.Errorf("ParseRange(%q) max present = %v, want %v", tt.input, ok, !tt.noMax)
			} else if ok && v != tt.wantMax {
				t.Errorf("ParseRange(%q) max = %d, want %d", tt.input, v, tt.wantMax)
			}
		})
	}
}

func TestParseRangePrecedence(t *testing.T) {
	// A string matching both an explicit range and a one-sided pattern
	// must take the explicit range.
	gotMin, gotMax := ParseRange("minimum 18 to 27 years")
	if v, ok := gotMin.Get(); !ok || v != 18 {
		t.Errorf("min = %v, want 18", gotMin)
	}
	if v, ok := gotMax.Get(); !ok || v != 27 {
		t.Errorf("max = %v, want 27", gotMax)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"<b>Hello</b>  World", "Hello World"},
		{"a\n\tb   c", "a b c"},
		{"&amp; &lt;ok&gt;", "& <ok>"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanText(tt.input); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExpandDepartment(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"UPSC", "Union Public Service Commission"},
		{"ssc", "Staff Selection Commission"},
		{"SSC Recruitment", "Staff Selection Commission Recruitment"},
		{"Ministry of Defence", "Ministry of Defence"},
	}
	for _, tt := range tests {
		if got := ExpandDepartment(tt.input); got != tt.want {
			t.Errorf("ExpandDepartment(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDetectState(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Posting in Lucknow, Uttar Pradesh", "Uttar Pradesh"},
		{"tamil nadu", "Tamil Nadu"},
		{"All India", ""},
	}
	for _, tt := range tests {
		if got := DetectState(tt.input); got != tt.want {
			t.Errorf("DetectState(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestContentHashPurity(t *testing.T) {
	a := ContentHash("Title", "Desc", "2025-01-01", "10", "Graduate")
	b := ContentHash("title", "DESC", "2025-01-01", "10", "graduate")
	if a != b {
		t.Error("hash should be case-insensitive over its inputs")
	}

	c := ContentHash("Title", "Desc", "2025-01-02", "10", "Graduate")
	if a == c {
		t.Error("different deadline should change the hash")
	}

	if len(a) != 32 {
		t.Errorf("hash length = %d, want 32", len(a))
	}
}

func validRawPosting() RawPosting {
	return RawPosting{
		Title:     "Junior Engineer Recruitment 2025",
		SourceURL: "https://example.gov.in/jobs/je-2025",
		Fields: map[string]string{
			"title":             "Junior Engineer Recruitment 2025",
			"description":       "Applications are invited for Junior Engineer posts.",
			"department":        "SSC",
			"total_posts":       "150 Posts",
			"qualification":     "Diploma in Engineering",
			"notification_date": "01/01/2025",
			"last_date":         "01/02/2025",
			"fee":               "₹500",
			"salary":            "Rs. 25,500 - 81,100",
			"age_limit":         "18 to 27 years",
			"location":          "Uttar Pradesh",
		},
	}
}

func TestNormalize(t *testing.T) {
	job, err := Normalize(validRawPosting())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if job.Department != "Staff Selection Commission" {
		t.Errorf("department = %q", job.Department)
	}
	if v, _ := job.TotalPosts.Get(); v != 150 {
		t.Errorf("total posts = %d, want 150", v)
	}
	if job.LastDate == nil || job.LastDate.Format("2006-01-02") != "2025-02-01" {
		t.Errorf("last date = %v", job.LastDate)
	}
	if v, _ := job.Fee.Get(); v != 500 {
		t.Errorf("fee = %v, want 500", v)
	}
	if v, _ := job.MinSalary.Get(); v != 25500 {
		t.Errorf("min salary = %d", v)
	}
	if v, _ := job.MaxAge.Get(); v != 27 {
		t.Errorf("max age = %d", v)
	}
	if job.Location != "Uttar Pradesh" {
		t.Errorf("location = %q", job.Location)
	}
	if job.ContentHash == "" {
		t.Error("content hash not set")
	}
	if job.QualityScore <= 0 || job.QualityScore > 100 {
		t.Errorf("quality score = %d", job.QualityScore)
	}
}

func TestNormalizeRejectsShortTitle(t *testing.T) {
	raw := validRawPosting()
	raw.Title = "Jobs"
	raw.Fields["title"] = "Jobs"

	_, err := Normalize(raw)
	if err == nil {
		t.Fatal("expected validation error for short title")
	}
	if Classify(err) != ErrorTypeValidation {
		t.Errorf("error type = %v, want validation", Classify(err))
	}
}

func TestNormalizeRejectsBadURL(t *testing.T) {
	for _, badURL := range []string{"", "ftp://example.com/x", "example.gov.in/jobs"} {
		raw := validRawPosting()
		raw.SourceURL = badURL

		if _, err := Normalize(raw); err == nil {
			t.Errorf("expected validation error for url %q", badURL)
		}
	}
}

func TestNormalizeHashIgnoresOtherFields(t *testing.T) {
	a, err := Normalize(validRawPosting())
	if err != nil {
		t.Fatal(err)
	}

	raw := validRawPosting()
	raw.Fields["location"] = "Kerala"
	raw.Fields["fee"] = "Nil"
	b, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}

	if a.ContentHash != b.ContentHash {
		t.Error("hash must depend only on the five key fields")
	}
}

func TestNormalizeDescriptionMarkdown(t *testing.T) {
	raw := validRawPosting()
	raw.Fields["description_html"] = "<p>Apply <strong>online</strong> only.</p>"

	job, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(job.DescriptionMd, "**online**") {
		t.Errorf("description markdown = %q", job.DescriptionMd)
	}
}

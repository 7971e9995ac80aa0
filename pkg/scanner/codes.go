package scanner

// ErrorCode is a scan-domain outcome attached to a resource. Any code makes
// the verdict positive: a resource that could not be checked is treated as
// infected.
type ErrorCode string

const (
	// CodeVirusDetected means the engine found a signature
	CodeVirusDetected ErrorCode = "antivirus_virus_detected"
	// CodeFileNotFound means the path handed to the engine does not exist
	CodeFileNotFound ErrorCode = "antivirus_file_not_found"
	// CodeClientError means the engine failed or could not be reached
	CodeClientError ErrorCode = "antivirus_client_error"
)

// Errors is an ordered list of error codes
type Errors []ErrorCode

// Add appends code
func (e *Errors) Add(code ErrorCode) {
	*e = append(*e, code)
}

// Contains reports whether code is present
func (e Errors) Contains(code ErrorCode) bool {
	for _, c := range e {
		if c == code {
			return true
		}
	}
	return false
}

// Unique returns the codes with duplicates dropped, keeping first occurrences in order
func (e Errors) Unique() Errors {
	if e == nil {
		return nil
	}
	seen := make(map[ErrorCode]struct{}, len(e))
	out := make(Errors, 0, len(e))
	for _, c := range e {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Strings returns the codes as plain strings
func (e Errors) Strings() []string {
	out := make([]string, len(e))
	for i, c := range e {
		out[i] = string(c)
	}
	return out
}

package export

import (
	"io"

	"github.com/Skryldev/cpr-lab/domain/model"
	"go.uber.org/multierr"
)

// BatchDocument collects several exports. Each entry of Projects is either a
// *Document or an *ErrorEntry, in the order of the results given.
type BatchDocument struct {
	ExportVersion string `json:"export_version"`
	ProjectCount  int    `json:"project_count"`
	Projects      []any  `json:"projects"`
}

// ErrorEntry stands in for a file that could not be exported
type ErrorEntry struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Batch converts batch results into one document. ProjectCount counts only
// the successful entries. The returned error combines every job failure and
// is nil when all jobs succeeded.
func Batch(results []model.BatchResult, opts ...Option) (*BatchDocument, error) {
	o, err := apply(opts)
	if err != nil {
		return nil, err
	}

	doc := &BatchDocument{
		ExportVersion: ExportVersion,
		Projects:      make([]any, 0, len(results)),
	}
	var failures error
	for _, r := range results {
		if r.Err != nil || r.Project == nil {
			entry := &ErrorEntry{Path: r.Path, Status: string(model.StatusOf(r.Project, r.Err))}
			if r.Err != nil {
				entry.Error = r.Err.Error()
				failures = multierr.Append(failures, r.Err)
			}
			doc.Projects = append(doc.Projects, entry)
			continue
		}
		doc.Projects = append(doc.Projects, document(r.Project, o.version))
		doc.ProjectCount++
	}
	return doc, failures
}

// WriteBatch encodes a batch document to w followed by a newline. Job
// failures are reported as entries, not as an error.
func WriteBatch(w io.Writer, results []model.BatchResult, opts ...Option) error {
	o, err := apply(opts)
	if err != nil {
		return err
	}
	doc, _ := Batch(results, opts...)
	b, err := encode(doc, o.indent)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

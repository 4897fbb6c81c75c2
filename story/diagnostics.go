package story

import "strings"

// DiagnosticCode identifica il tipo di problema non bloccante
type DiagnosticCode string

const (
	InvalidMetadata  DiagnosticCode = "invalid-metadata"
	InvalidStoryData DiagnosticCode = "invalid-storydata"
	InvalidTagColors DiagnosticCode = "invalid-tag-colors"
	InvalidPassages  DiagnosticCode = "invalid-passages"
	MissingName      DiagnosticCode = "missing-name"
	RegeneratedIFID  DiagnosticCode = "regenerated-ifid"
)

// Diagnostic è un problema di qualità dei dati: l'operazione prosegue
// con un valore di default e il chiamante decide cosa farne.
type Diagnostic struct {
	Code    DiagnosticCode `json:"code"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	return "WARN: " + d.Message
}

// Diagnostics è la lista accumulata durante parsing o emissione
type Diagnostics []Diagnostic

// Add accoda una nuova diagnostica
func (ds *Diagnostics) Add(code DiagnosticCode, msg string) {
	*ds = append(*ds, Diagnostic{Code: code, Message: msg})
}

// Has verifica se è presente almeno una diagnostica con il codice dato
func (ds Diagnostics) Has(code DiagnosticCode) bool {
	for _, d := range ds {
		if d.Code == code {
			return true
		}
	}
	return false
}

// Messages restituisce i messaggi in forma testuale
func (ds Diagnostics) Messages() []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.String())
	}
	return out
}

func (ds Diagnostics) String() string {
	return strings.Join(ds.Messages(), "\n")
}

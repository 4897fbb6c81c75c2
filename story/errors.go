package story

// Kind classifica gli errori restituiti dalla libreria
type Kind int

const (
	KindUnknown Kind = iota
	KindNoPassages
	KindInvalidPassageStructure
	KindEmptyName
	KindMissingHTMLElement
	KindInvalidOperation
	KindKeyNotFound
	KindInvalidArgument
	KindInvalidJSON
	KindInvalidStoryFormat
	KindInvalidIFID
	KindPassageNotFound
	KindMissingStoryData
)

var kindNames = map[Kind]string{
	KindUnknown:                 "Unknown",
	KindNoPassages:              "NoPassages",
	KindInvalidPassageStructure: "InvalidPassageStructure",
	KindEmptyName:               "EmptyName",
	KindMissingHTMLElement:      "MissingHTMLElement",
	KindInvalidOperation:        "InvalidOperation",
	KindKeyNotFound:             "KeyNotFound",
	KindInvalidArgument:         "InvalidArgument",
	KindInvalidJSON:             "InvalidJSON",
	KindInvalidStoryFormat:      "InvalidStoryFormat",
	KindInvalidIFID:             "InvalidIFID",
	KindPassageNotFound:         "PassageNotFound",
	KindMissingStoryData:        "MissingStoryData",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Error è l'errore classificato della libreria.
// Il messaggio è parte del contratto e viene restituito così com'è.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is confronta solo il Kind, così errors.Is(err, ErrNoPassages) funziona
// anche quando il messaggio è diverso da quello di default.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError crea un errore classificato con messaggio personalizzato
func NewError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Errori sentinella, da usare con errors.Is
var (
	ErrNoPassages              = &Error{Kind: KindNoPassages, Msg: "ERROR: The document does not contain any passages."}
	ErrInvalidPassageStructure = &Error{Kind: KindInvalidPassageStructure, Msg: "ERROR: The document contains invalid passage."}
	ErrEmptyName               = &Error{Kind: KindEmptyName, Msg: "Passage name cannot be empty."}
	ErrMissingHTMLElement      = &Error{Kind: KindMissingHTMLElement, Msg: "HTML Element cannot be found."}
	ErrInvalidOperation        = &Error{Kind: KindInvalidOperation, Msg: "ERROR: Invalid operation."}
	ErrKeyNotFound             = &Error{Kind: KindKeyNotFound, Msg: "ERROR: The given key was not present."}
	ErrInvalidArgument         = &Error{Kind: KindInvalidArgument, Msg: "ERROR: Invalid argument."}
	ErrInvalidJSON             = &Error{Kind: KindInvalidJSON, Msg: "ERROR: Invalid JSON format."}
	ErrInvalidStoryFormat      = &Error{Kind: KindInvalidStoryFormat, Msg: "ERROR: Invalid story format."}
	ErrInvalidIFID             = &Error{Kind: KindInvalidIFID, Msg: "ERROR: The story IFID is not a valid."}
	ErrPassageNotFound         = &Error{Kind: KindPassageNotFound, Msg: "ERROR: Passage not found."}
	ErrMissingStoryData        = &Error{Kind: KindMissingStoryData, Msg: "ERROR: The document does not contain a <tw-storydata> element."}
)

package story

import (
	"fmt"
	"strconv"
	"strings"

	"twee-kit/ifid"
)

// Nomi dei passaggi speciali interpretati da AddPassage
const (
	StoryDataPassage  = "StoryData"
	StoryTitlePassage = "StoryTitle"
	StartPassage      = "Start"
)

// DefaultName è il nome di una storia appena creata
const DefaultName = "Untitled"

// Story rappresenta l'intera storia. L'ordine dei passaggi è significativo
// per tutti gli emettitori. Non è sincronizzata internamente.
type Story struct {
	Name           string
	IFID           string
	Start          string
	Format         string
	FormatVersion  string
	Zoom           float64
	Creator        string
	CreatorVersion string
	TagColors      *TagColors
	Stylesheets    []string
	Scripts        []string

	passages []*Passage
}

// New crea una storia vuota con i valori di default
func New() *Story {
	return &Story{
		Name:      DefaultName,
		Zoom:      1.0,
		TagColors: NewTagColors(),
	}
}

// Outcome descrive cosa ha fatto AddPassage con il passaggio ricevuto
type Outcome int

const (
	// Stored: aggiunto in coda
	Stored Outcome = iota
	// Replaced: sostituito un passaggio con lo stesso nome, nella stessa posizione
	Replaced
	// AbsorbedAsMetadata: assorbito nei campi della storia, non memorizzato (StoryData)
	AbsorbedAsMetadata
	// StoredAndAbsorbed: memorizzato e usato per aggiornare la storia (StoryTitle, Start)
	StoredAndAbsorbed
)

func (o Outcome) String() string {
	switch o {
	case Stored:
		return "Stored"
	case Replaced:
		return "Replaced"
	case AbsorbedAsMetadata:
		return "AbsorbedAsMetadata"
	case StoredAndAbsorbed:
		return "StoredAndAbsorbed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// AddResult è l'esito esplicito di AddPassage
type AddResult struct {
	Outcome     Outcome
	Index       int // posizione nella lista, -1 se assorbito
	Count       int // numero di passaggi dopo l'operazione
	Diagnostics Diagnostics
}

// Len restituisce il numero di passaggi memorizzati
func (s *Story) Len() int {
	return len(s.passages)
}

// Passages restituisce i passaggi in ordine
func (s *Story) Passages() []*Passage {
	out := make([]*Passage, len(s.passages))
	copy(out, s.passages)
	return out
}

// AppendPassage aggiunge in coda senza regole speciali e senza controllo
// dei duplicati. È usato dal parser Twee, che produce una lista piatta.
func (s *Story) AppendPassage(p *Passage) int {
	s.passages = append(s.passages, p)
	return len(s.passages)
}

func (s *Story) indexOf(name string) int {
	for i, p := range s.passages {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// AddPassage aggiunge un passaggio applicando, in ordine:
// collisione di nome, StoryData, StoryTitle, Start, default.
func (s *Story) AddPassage(p *Passage) (AddResult, error) {
	if p == nil {
		return AddResult{Index: -1, Count: s.Len()}, NewError(KindInvalidArgument, "ERROR: Passage cannot be nil.", nil)
	}

	if i := s.indexOf(p.Name); i >= 0 {
		s.passages[i] = p
		return AddResult{Outcome: Replaced, Index: i, Count: s.Len()}, nil
	}

	switch p.Name {
	case StoryDataPassage:
		diags, err := s.absorbStoryData(p.Text)
		return AddResult{Outcome: AbsorbedAsMetadata, Index: -1, Count: s.Len(), Diagnostics: diags}, err

	case StoryTitlePassage:
		s.Name = p.Text
		s.passages = append(s.passages, p)
		return AddResult{Outcome: StoredAndAbsorbed, Index: s.Len() - 1, Count: s.Len()}, nil

	case StartPassage:
		outcome := Stored
		if s.Start == "" {
			s.Start = StartPassage
			outcome = StoredAndAbsorbed
		}
		s.passages = append(s.passages, p)
		return AddResult{Outcome: outcome, Index: s.Len() - 1, Count: s.Len()}, nil
	}

	s.passages = append(s.passages, p)
	return AddResult{Outcome: Stored, Index: s.Len() - 1, Count: s.Len()}, nil
}

// absorbStoryData applica le chiavi note del JSON di StoryData.
// I valori vengono prima tutti validati, poi applicati insieme.
func (s *Story) absorbStoryData(text string) (Diagnostics, error) {
	var diags Diagnostics

	data, err := ParseObject([]byte(text))
	if err != nil {
		diags.Add(InvalidStoryData, "Unable to parse StoryData. "+err.Error())
		return diags, nil
	}

	var (
		zoom      float64
		hasZoom   bool
		tagColors *TagColors
	)

	if v, ok := data.Get("zoom"); ok {
		n, isNum := v.(Number)
		if !isNum {
			return diags, NewError(KindInvalidOperation, "ERROR: The StoryData zoom value is not a number.", nil)
		}
		z, err := n.Float()
		if err != nil {
			return diags, NewError(KindInvalidOperation, "ERROR: The StoryData zoom value is not a number.", err)
		}
		zoom, hasZoom = z, true
	}

	if v, ok := data.Get("tag-colors"); ok {
		obj, isObj := v.(*Object)
		if !isObj {
			return diags, NewError(KindInvalidJSON, "ERROR: The StoryData tag-colors value is not a valid collection.", nil)
		}
		tc, err := tagColorsFromObject(obj)
		if err != nil {
			return diags, NewError(KindInvalidJSON, "ERROR: The StoryData tag-colors value is not a valid collection.", err)
		}
		tagColors = tc
	}

	if v, ok := data.Get("ifid"); ok {
		s.IFID = Text(v)
	}
	if v, ok := data.Get("start"); ok {
		s.Start = Text(v)
	}
	if v, ok := data.Get("format"); ok {
		s.Format = Text(v)
	}
	if v, ok := data.Get("format-version"); ok {
		s.FormatVersion = Text(v)
	}
	if hasZoom {
		s.Zoom = zoom
	}
	if tagColors != nil {
		s.TagColors = tagColors
	}
	return diags, nil
}

// RemovePassageByName rimuove tutti i passaggi con quel nome
func (s *Story) RemovePassageByName(name string) int {
	kept := s.passages[:0]
	removed := 0
	for _, p := range s.passages {
		if p.Name == name {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(s.passages); i++ {
		s.passages[i] = nil
	}
	s.passages = kept
	return removed
}

// GetPassagesByTag restituisce i passaggi con il tag, in ordine
func (s *Story) GetPassagesByTag(tag string) []*Passage {
	var out []*Passage
	for _, p := range s.passages {
		if p.HasTag(tag) {
			out = append(out, p)
		}
	}
	return out
}

// GetPassageByName restituisce il passaggio o ErrPassageNotFound
func (s *Story) GetPassageByName(name string) (*Passage, error) {
	if i := s.indexOf(name); i >= 0 {
		return s.passages[i], nil
	}
	return nil, NewError(KindPassageNotFound, fmt.Sprintf("ERROR: Passage '%s' not found.", name), nil)
}

// FromPassages costruisce una storia facendo passare ogni passaggio da AddPassage
func FromPassages(passages []*Passage) (*Story, Diagnostics, error) {
	s := New()
	var diags Diagnostics
	for _, p := range passages {
		res, err := s.AddPassage(p)
		diags = append(diags, res.Diagnostics...)
		if err != nil {
			return nil, diags, err
		}
	}
	return s, diags, nil
}

// ValidateIFID applica ifid.Validate restituendo un errore InvalidArgument;
// la causa originale resta raggiungibile con errors.Is
func ValidateIFID(id string) error {
	if err := ifid.Validate(id); err != nil {
		return NewError(KindInvalidArgument, err.Error(), err)
	}
	return nil
}

// EnsureIFID rigenera l'IFID se non è valido, segnalandolo
func (s *Story) EnsureIFID(diags *Diagnostics) {
	if ifid.IsValid(s.IFID) {
		return
	}
	diags.Add(RegeneratedIFID, "IFID is not in the proper format. Generating a new IFID.")
	s.IFID = ifid.Generate()
}

func formatZoom(z float64) string {
	return strconv.FormatFloat(z, 'f', -1, 64)
}

// StoryDataObject costruisce il JSON del passaggio StoryData.
// Non verifica l'IFID: chi lo chiama deve usare prima EnsureIFID.
func (s *Story) StoryDataObject() *Object {
	data := NewObject()
	data.Set("ifid", String(s.IFID))
	if s.Format != "" {
		data.Set("format", String(s.Format))
	}
	if s.FormatVersion != "" {
		data.Set("format-version", String(s.FormatVersion))
	}
	if s.Start != "" {
		data.Set("start", String(s.Start))
	}
	if s.TagColors.Len() > 0 {
		data.Set("tag-colors", s.TagColors.toObject())
	}
	if s.Zoom >= 1.0 {
		data.Set("zoom", Number(formatZoom(s.Zoom)))
	}
	return data
}

// ToTwee restituisce il documento Twee 3 completo.
// Un IFID non valido viene rigenerato (e la storia modificata).
func (s *Story) ToTwee() (string, Diagnostics, error) {
	var diags Diagnostics
	s.EnsureIFID(&diags)

	data, err := MarshalPretty(s.StoryDataObject())
	if err != nil {
		return "", diags, err
	}

	var sb strings.Builder
	sb.WriteString(":: StoryData\n")
	sb.Write(data)
	sb.WriteString("\n\n")

	if s.Name != "" {
		sb.WriteString(":: StoryTitle\n")
		sb.WriteString(s.Name)
		sb.WriteString("\n\n")
	}

	for _, p := range s.passages {
		twee, err := p.ToTwee()
		if err != nil {
			return "", diags, err
		}
		sb.WriteString(twee)
		sb.WriteString("\n\n")
	}

	return sb.String(), diags, nil
}

// StartPID calcola il pid del passaggio iniziale: 0 senza passaggi,
// 1 se Start non corrisponde a nessun passaggio.
func (s *Story) StartPID() int {
	if len(s.passages) == 0 {
		return 0
	}
	startPID := 1
	for i, p := range s.passages {
		if p.Name == s.Start {
			startPID = i + 1
		}
	}
	return startPID
}

// ToTwine2HTML restituisce l'elemento <tw-storydata> completo.
// Un IFID non valido viene rigenerato (e la storia modificata).
func (s *Story) ToTwine2HTML() (string, Diagnostics, error) {
	var diags Diagnostics
	s.EnsureIFID(&diags)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<tw-storydata name="%s" ifid="%s"`, s.Name, s.IFID)
	fmt.Fprintf(&sb, ` startnode="%d"`, s.StartPID())

	if s.Creator != "" {
		fmt.Fprintf(&sb, ` creator="%s"`, s.Creator)
	}
	if s.CreatorVersion != "" {
		fmt.Fprintf(&sb, ` creator-version="%s"`, s.CreatorVersion)
	}
	if s.Zoom >= 1.0 {
		fmt.Fprintf(&sb, ` zoom="%s"`, formatZoom(s.Zoom))
	}
	if s.Format != "" {
		fmt.Fprintf(&sb, ` format="%s"`, s.Format)
	}
	if s.FormatVersion != "" {
		fmt.Fprintf(&sb, ` format-version="%s"`, s.FormatVersion)
	}
	sb.WriteString(" options hidden>\n")

	for _, css := range s.Stylesheets {
		fmt.Fprintf(&sb, "<style role=\"stylesheet\" id=\"twine-user-stylesheet\" type=\"text/twine-css\">%s</style>\n", css)
	}
	for _, p := range s.GetPassagesByTag("stylesheet") {
		fmt.Fprintf(&sb, "<style role=\"stylesheet\" id=\"twine-user-stylesheet\" type=\"text/twine-css\">%s</style>\n", p.Text)
	}

	for _, js := range s.Scripts {
		fmt.Fprintf(&sb, "<script role=\"script\" id=\"twine-user-script\" type=\"text/twine-javascript\">%s</script>\n", js)
	}
	for _, p := range s.GetPassagesByTag("script") {
		fmt.Fprintf(&sb, "<script role=\"script\" id=\"twine-user-script\" type=\"text/twine-javascript\">%s</script>\n", p.Text)
	}

	sb.WriteString(s.TagColors.ToTwine2HTML())

	for i, p := range s.passages {
		html, err := p.ToTwine2HTML(i + 1)
		if err != nil {
			return "", diags, err
		}
		sb.WriteString(html)
	}

	sb.WriteString("</tw-storydata>")
	return sb.String(), diags, nil
}

// ToTwine1HTML restituisce lo storeArea di Twine 1
func (s *Story) ToTwine1HTML() (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<div id="storeArea" data-size="%d">`, len(s.passages))
	for _, p := range s.passages {
		html, err := p.ToTwine1HTML()
		if err != nil {
			return "", err
		}
		sb.WriteString(html)
	}
	sb.WriteString("</div>")
	return sb.String(), nil
}

// storyJSON fissa l'ordine delle chiavi del documento Twine 2 JSON
type storyJSON struct {
	Name           string     `json:"name"`
	IFID           string     `json:"ifid"`
	Start          string     `json:"start"`
	Format         string     `json:"format"`
	FormatVersion  string     `json:"format-version"`
	Creator        string     `json:"creator"`
	CreatorVersion string     `json:"creator-version"`
	Zoom           Number     `json:"zoom"`
	TagColors      *TagColors `json:"tag-colors"`
	Style          string     `json:"style"`
	Script         string     `json:"script"`
	Passages       []*Passage `json:"passages"`
}

// ToJSON restituisce il documento Twine 2 JSON indentato.
// I passaggi con tag stylesheet/script vengono anche uniti in style/script.
func (s *Story) ToJSON() (string, error) {
	styles := append([]string{}, s.Stylesheets...)
	for _, p := range s.GetPassagesByTag("stylesheet") {
		styles = append(styles, p.Text)
	}
	scripts := append([]string{}, s.Scripts...)
	for _, p := range s.GetPassagesByTag("script") {
		scripts = append(scripts, p.Text)
	}

	for _, p := range s.passages {
		if p.Name == "" {
			return "", ErrEmptyName
		}
	}

	passages := s.passages
	if passages == nil {
		passages = []*Passage{}
	}
	tagColors := s.TagColors
	if tagColors == nil {
		tagColors = NewTagColors()
	}

	doc := storyJSON{
		Name:           s.Name,
		IFID:           s.IFID,
		Start:          s.Start,
		Format:         s.Format,
		FormatVersion:  s.FormatVersion,
		Creator:        s.Creator,
		CreatorVersion: s.CreatorVersion,
		Zoom:           Number(formatZoom(s.Zoom)),
		TagColors:      tagColors,
		Style:          strings.Join(styles, "\n"),
		Script:         strings.Join(scripts, "\n"),
		Passages:       passages,
	}

	b, err := MarshalPretty(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

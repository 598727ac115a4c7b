package bot

const (
	CommandPrefix = "music "

	StatusSearching  = "🔍 Searching..."
	ErrorPrefix      = "❌ Error: "
	ErrorLongAudio   = "Track is longer than %d minutes."
	ErrorTooLarge    = "File is larger than %d MB."
	ErrorNoResults   = "No results found."
	ErrorGeneric     = "Something went wrong, try again later."
	ButtonRequester  = "🎵%s"
	ButtonNotRight   = "🔎 Not the right song?"
	ButtonCancel     = "❌ Cancel"
	UntitledSong     = "Untitled Song"
	UnknownValue     = "unknown"
	NotForYou        = "❌ This button is not for you 💅"
	SongUpdated      = "Song updated."
	InfoExpired      = "Information expired."
	FailedToUpdate   = "Failed to update message: %s"
	QueryNotCached   = "Error: Query not found in cache."
	NoAlternatives   = "No suitable alternatives found."
	InlineTitleEmpty = "Song"
)

var taglines = []string{
	"The oldest song found is a 3400-year-old hymn from Ugarit.",
	"A 40,000-year-old bird bone flute is considered the first instrument.",
}

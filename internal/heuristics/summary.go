package heuristics

import (
	"strings"
	"unicode"

	"github.com/phobologic/acp/internal/symbols"
)

// verbPhrases maps a leading verb to its summary phrase.
var verbPhrases = map[string]string{
	"abort": "Aborts", "accept": "Accepts", "acquire": "Acquires", "add": "Adds",
	"after": "Runs after", "allocate": "Allocates", "allow": "Allows", "append": "Appends",
	"apply": "Applies", "approve": "Approves", "as": "Converts to", "assert": "Asserts",
	"attach": "Attaches", "authenticate": "Authenticates", "authorize": "Authorizes",
	"before": "Runs before", "begin": "Begins", "bind": "Binds", "build": "Builds",
	"cache": "Caches", "calc": "Calculates", "calculate": "Calculates", "can": "Checks if can",
	"cancel": "Cancels", "cd": "Changes directory to", "check": "Checks", "choose": "Chooses",
	"cleanup": "Cleans up", "clear": "Clears", "clone": "Clones", "close": "Closes",
	"collect": "Collects", "commit": "Commits", "compare": "Compares", "compile": "Compiles",
	"complete": "Completes", "compute": "Computes", "configure": "Configures",
	"connect": "Connects", "convert": "Converts", "copy": "Copies", "count": "Counts",
	"cp": "Copies", "create": "Creates", "debug": "Logs debug", "decode": "Decodes",
	"decrypt": "Decrypts", "del": "Deletes", "delete": "Deletes", "deny": "Denies",
	"dequeue": "Dequeues", "deserialize": "Deserializes", "destroy": "Destroys",
	"detach": "Detaches", "diff": "Diffs", "disable": "Disables", "disconnect": "Disconnects",
	"dispatch": "Dispatches", "display": "Displays", "dispose": "Disposes", "do": "Does",
	"download": "Downloads", "draw": "Draws", "emit": "Emits", "enable": "Enables",
	"encode": "Encodes", "encrypt": "Encrypts", "end": "Ends", "enqueue": "Enqueues",
	"ensure": "Ensures", "equals": "Checks equality of", "escape": "Escapes",
	"evict": "Evicts", "exec": "Executes", "execute": "Executes", "expire": "Expires",
	"export": "Exports", "extract": "Extracts", "fetch": "Fetches", "filter": "Filters",
	"find": "Finds", "finish": "Finishes", "flush": "Flushes", "fork": "Forks",
	"format": "Formats", "free": "Frees", "from": "Creates from", "gather": "Gathers",
	"gen": "Generates", "generate": "Generates", "get": "Gets", "handle": "Handles",
	"has": "Checks if has", "hash": "Hashes", "hide": "Hides", "import": "Imports",
	"init": "Initializes", "initialize": "Initializes", "insert": "Inserts",
	"install": "Installs", "invalidate": "Invalidates", "is": "Checks if", "join": "Joins",
	"kill": "Kills", "list": "Lists", "listen": "Listens on", "load": "Loads",
	"lock": "Locks", "log": "Logs", "login": "Logs in", "logout": "Logs out",
	"lookup": "Looks up", "ls": "Lists", "make": "Makes", "map": "Maps",
	"marshal": "Marshals", "match": "Matches", "measure": "Measures", "merge": "Merges",
	"mkdir": "Creates directory", "mock": "Mocks", "mount": "Mounts", "move": "Moves",
	"mv": "Moves", "new": "Creates new", "normalize": "Normalizes", "notify": "Notifies",
	"on": "Handles", "open": "Opens", "paint": "Paints", "parse": "Parses",
	"peek": "Peeks at", "pick": "Picks", "pop": "Pops", "prepend": "Prepends",
	"print": "Prints", "process": "Processes", "publish": "Publishes", "push": "Pushes",
	"put": "Puts", "query": "Queries", "read": "Reads", "receive": "Receives",
	"record": "Records", "recv": "Receives", "reduce": "Reduces", "refresh": "Refreshes",
	"register": "Registers", "reject": "Rejects", "release": "Releases", "remove": "Removes",
	"rename": "Renames", "render": "Renders", "replace": "Replaces", "report": "Reports",
	"require": "Requires", "reset": "Resets", "resize": "Resizes", "resolve": "Resolves",
	"retry": "Retries", "rm": "Removes", "rollback": "Rolls back", "rotate": "Rotates",
	"run": "Runs", "sanitize": "Sanitizes", "save": "Saves", "scale": "Scales",
	"scan": "Scans", "schedule": "Schedules", "search": "Searches", "select": "Selects",
	"send": "Sends", "serialize": "Serializes", "serve": "Serves", "set": "Sets",
	"setup": "Sets up", "should": "Determines if should", "show": "Shows", "sign": "Signs",
	"sort": "Sorts", "spawn": "Spawns", "split": "Splits", "start": "Starts",
	"stat": "Stats", "stop": "Stops", "store": "Stores", "strip": "Strips",
	"subscribe": "Subscribes to", "sync": "Synchronizes", "teardown": "Tears down",
	"test": "Tests", "to": "Converts to", "toggle": "Toggles", "trace": "Traces",
	"track": "Tracks", "transform": "Transforms", "traverse": "Traverses", "trim": "Trims",
	"try": "Tries", "unbind": "Unbinds", "unlock": "Unlocks", "unmarshal": "Unmarshals",
	"unmount": "Unmounts", "unregister": "Unregisters", "unwrap": "Unwraps",
	"update": "Updates", "upload": "Uploads", "upsert": "Upserts", "use": "Uses",
	"validate": "Validates", "verify": "Verifies", "visit": "Visits", "wait": "Waits for",
	"walk": "Walks", "warn": "Warns", "with": "Returns a copy with", "wrap": "Wraps",
	"write": "Writes",
}

// SplitIdentifier splits an identifier into words at '_', '-' and case
// boundaries. Acronyms stay together: parseHTTPRequest -> parse HTTP Request.
func SplitIdentifier(name string) []string {
	var words []string
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' || r == '$' }) {
		runes := []rune(part)
		start := 0
		for i := 1; i < len(runes); i++ {
			prev, cur := runes[i-1], runes[i]
			boundary := unicode.IsLower(prev) && unicode.IsUpper(cur) ||
				unicode.IsDigit(prev) && unicode.IsUpper(cur) ||
				unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if boundary {
				words = append(words, string(runes[start:i]))
				start = i
			}
		}
		words = append(words, string(runes[start:]))
	}
	return words
}

func isVowel(b byte) bool { return strings.IndexByte("aeiou", b) >= 0 }

// Conjugate returns the third-person singular form of a verb, capitalized.
func Conjugate(verb string) string {
	v := strings.ToLower(verb)
	n := len(v)
	switch {
	case n == 0:
		return ""
	case strings.HasSuffix(v, "x") || strings.HasSuffix(v, "ch") || strings.HasSuffix(v, "sh"):
		v += "es"
	case n >= 2 && v[n-1] == 'y' && !isVowel(v[n-2]):
		v = v[:n-1] + "ies"
	case strings.HasSuffix(v, "y"):
		v += "s"
	case strings.HasSuffix(v, "ss") || strings.HasSuffix(v, "us") || strings.HasSuffix(v, "is"):
		v += "es"
	case strings.HasSuffix(v, "s"):
	default:
		v += "s"
	}
	return capitalize(v)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// SummaryFromIdentifier derives a summary from a symbol name. It returns
// false for kinds that get no generated summary.
func SummaryFromIdentifier(name string, kind symbols.Kind) (string, bool) {
	words := SplitIdentifier(strings.TrimLeft(name, "_#"))
	if len(words) == 0 {
		return "", false
	}
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}

	switch kind {
	case symbols.Function, symbols.Method:
		fallback := name + " function"
		phrase, known := verbPhrases[lower[0]]
		if !known {
			phrase = Conjugate(lower[0])
			if strings.Contains(phrase, "eses") || strings.Contains(phrase, "sses") {
				return fallback, true
			}
		}
		candidate := strings.TrimSpace(phrase + " " + strings.Join(lower[1:], " "))
		if strings.Contains(candidate, "  ") || len(candidate) < 5 {
			return fallback, true
		}
		return candidate, true
	case symbols.Class, symbols.Struct:
		return capitalize(strings.Join(lower, " ")), true
	case symbols.Interface:
		return capitalize(strings.Join(lower, " ")) + " interface", true
	case symbols.Trait:
		return capitalize(strings.Join(lower, " ")) + " trait", true
	}
	return "", false
}

package recovery

// Words is the fixed recovery-code dictionary. Its order is part of the
// format and must not change.
var Words = [...]string{
	"apple", "river", "house", "mountain", "sky", "blue", "falcon", "eagle", "tiger", "ocean",
	"forest", "star", "moon", "sun", "cloud", "fire", "earth", "water", "stone", "tree",
	"flower", "bird", "horse", "lion", "book", "code", "key", "lock", "door", "road",
	"path", "walk", "run", "jump", "swift", "lazy", "happy", "brave", "calm", "wise",
	"delta", "echo", "alpha", "omega", "solar", "lunar", "orbit", "galaxy", "comet", "planet",
}

// CodeWords is the number of words in a recovery code.
const CodeWords = 4

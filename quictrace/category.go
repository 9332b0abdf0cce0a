package quictrace

// Category is the kind of native object a record refers to.
type Category uint8

const (
	CategoryGlobal Category = iota
	CategoryRegistration
	CategoryConfiguration
	CategoryWorker
	CategoryListener
	CategoryBinding
	CategoryConnection
	CategoryStream
	CategoryDatapath

	categoryCount
)

var categoryNames = [categoryCount]string{
	"Global",
	"Registration",
	"Configuration",
	"Worker",
	"Listener",
	"Binding",
	"Connection",
	"Stream",
	"Datapath",
}

func (c Category) String() string {
	if c < categoryCount {
		return categoryNames[c]
	}
	return "Unknown"
}

// Categories lists every category in numeric order.
func Categories() []Category {
	out := make([]Category, categoryCount)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// GlobalOpcodeBase is the opcode of Global records in providers that encode
// the category in the opcode. Category n uses GlobalOpcodeBase+n.
const GlobalOpcodeBase = 11

// Provider keyword bits.
const (
	KeywordRegistration  uint64 = 0x1
	KeywordConfiguration uint64 = 0x2
	KeywordListener      uint64 = 0x4
	KeywordWorker        uint64 = 0x8
	KeywordBinding       uint64 = 0x10
	KeywordConnection    uint64 = 0x20
	KeywordStream        uint64 = 0x40
	KeywordUDP           uint64 = 0x80
	KeywordPacket        uint64 = 0x100
	KeywordTLS           uint64 = 0x200
	KeywordPlatform      uint64 = 0x400
	KeywordAPI           uint64 = 0x800
	KeywordLog           uint64 = 0x1000
	KeywordRPS           uint64 = 0x2000
	KeywordScheduling    uint64 = 0x20000000
	KeywordDataFlow      uint64 = 0x40000000
	KeywordLowVolume     uint64 = 0x80000000
)

// keywordOrder is the old schema fallback, first match wins.
var keywordOrder = [...]struct {
	mask uint64
	cat  Category
}{
	{KeywordRegistration, CategoryRegistration},
	{KeywordConfiguration, CategoryConfiguration},
	{KeywordListener, CategoryListener},
	{KeywordWorker, CategoryWorker},
	{KeywordBinding, CategoryBinding},
	{KeywordConnection | KeywordTLS, CategoryConnection},
	{KeywordStream, CategoryStream},
	{KeywordUDP, CategoryDatapath},
}

// ResolveCategory maps record header metadata to a category. Newer providers
// put the category in the opcode; older ones only set keyword bits, which are
// checked in priority order since several may be set at once.
func ResolveCategory(opcode uint8, keywords uint64) Category {
	if opcode >= GlobalOpcodeBase {
		if c := Category(opcode - GlobalOpcodeBase); c < categoryCount {
			return c
		}
		return CategoryGlobal
	}
	for _, k := range keywordOrder {
		if keywords&k.mask != 0 {
			return k.cat
		}
	}
	return CategoryGlobal
}

// hasCategoryMetadata reports whether a header carries anything
// ResolveCategory can use.
func hasCategoryMetadata(opcode uint8, keywords uint64) bool {
	return opcode >= GlobalOpcodeBase || keywords != 0
}

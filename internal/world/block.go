package world

// BlockType tags a cell. Air is the only non-solid type.
type BlockType uint8

const (
	Air BlockType = iota
	Grass
	Dirt
	Stone
)

func (b BlockType) Solid() bool { return b != Air }

func (b BlockType) String() string {
	switch b {
	case Air:
		return "air"
	case Grass:
		return "grass"
	case Dirt:
		return "dirt"
	case Stone:
		return "stone"
	}
	return "unknown"
}

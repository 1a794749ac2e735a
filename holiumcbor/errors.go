package holiumcbor

import "errors"

// Structural parse errors (spec §4.3.2).
var (
	ErrNonExistingMajorType = errors.New("non existing cbor major type")
	ErrRootNotArray         = errors.New("holium cbor root must be of array type")
	ErrMapsForbidden        = errors.New("holium cbor forbids map major types")
	ErrUnhandledDataDetails = errors.New("unhandled data details, currently handling counts up to 64 bits of length")
	ErrBadCborHeader        = errors.New("data details in cbor header wrongly encoded")
	ErrNonRecursive         = errors.New("major type is non recursive")
)

// Selector-evaluation errors (spec §4.3.3).
var (
	ErrNonValidSelectorStructure = errors.New("non valid selector structure")
	ErrNoNodeFound               = errors.New("no node for given selector")
	ErrUnionOnlyAtRoot           = errors.New("union can only be found at the root of a selector")
)

// Structural-copy errors (spec §4.3.4).
var (
	ErrNonCompatibleSelectors          = errors.New("non compatible selectors for connection")
	ErrDifferentUnionLength            = errors.New("tail and head selector unions have different lengths")
	ErrUnionOnlyAtRootLevel            = errors.New("union should only be applied at root level for a holium selector")
	ErrIndexSelectionOnLeaf            = errors.New("tried to apply an index selection on a declared leaf")
	ErrRangeSelectionOnLeaf            = errors.New("tried to apply a range selection on a declared leaf")
	ErrIndexAlreadyTaken               = errors.New("index already taken by another element")
	ErrDatasetLengthUnequalRangeLength = errors.New("data set length is not equal to range length")
	ErrNoDataInDataSet                 = errors.New("no data in dataset")
	ErrNoNodeAtIndex                   = errors.New("no node at given index")
)

package internal

import (
	callrelay "github.com/BrownNPC/CallRelay"
	"github.com/google/uuid"
)

func NewConnID() callrelay.ConnID {
	return uuid.New()
}

// GenerateUniqueConnID draws ids until isUnique accepts one.
func GenerateUniqueConnID(isUnique func(id callrelay.ConnID) bool) callrelay.ConnID {
	id := NewConnID()
	for !isUnique(id) {
		id = NewConnID()
	}
	return id
}

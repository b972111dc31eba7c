package app

import (
	"github.com/vk/fragmesh/extensions/property"
	"github.com/vk/fragmesh/internal/extension"
)

// builtinExtensions is the definitive list of all extensions that are
// compiled into the fragmesh-executor binary.
var builtinExtensions = []extension.Module{
	&property.Module{},
}

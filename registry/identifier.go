// Package registry provides module addressing and identity resolution for
// the arbiter decision core. Every message routed through the system carries
// a source and optional target ModuleIdentifier; the Registry maps component
// names to live identifiers and is constructed and injected explicitly, never
// held as process-wide state.
package registry

import (
	"fmt"

	"github.com/google/uuid"
)

// ComponentType classifies the role of a module instance.
type ComponentType string

const (
	ComponentService   ComponentType = "Service"
	ComponentManager   ComponentType = "Manager"
	ComponentHandler   ComponentType = "Handler"
	ComponentValidator ComponentType = "Validator"
)

// ModuleIdentifier uniquely identifies a logical module instance. The
// instance ID is generated once at construction and never reused. Identifiers
// are plain values used for routing and correlation, never for
// synchronization.
type ModuleIdentifier struct {
	ComponentName string        `json:"componentName"`
	ComponentType ComponentType `json:"componentType"`
	MethodName    string        `json:"methodName"`
	InstanceID    string        `json:"instanceId"`
}

// NewModuleIdentifier creates an identifier with a fresh instance ID.
func NewModuleIdentifier(name string, componentType ComponentType, method string) ModuleIdentifier {
	return ModuleIdentifier{
		ComponentName: name,
		ComponentType: componentType,
		MethodName:    method,
		InstanceID:    uuid.NewString(),
	}
}

// Equal reports whether two identifiers match on all four fields.
func (m ModuleIdentifier) Equal(other ModuleIdentifier) bool {
	return m.ComponentName == other.ComponentName &&
		m.ComponentType == other.ComponentType &&
		m.MethodName == other.MethodName &&
		m.InstanceID == other.InstanceID
}

// IsZero reports whether the identifier is the zero value.
func (m ModuleIdentifier) IsZero() bool {
	return m == ModuleIdentifier{}
}

// String renders the identifier for logs and diagnostics.
func (m ModuleIdentifier) String() string {
	short := m.InstanceID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s/%s.%s[%s]", m.ComponentType, m.ComponentName, m.MethodName, short)
}

package reachgraph

import "sync"

// vtable is a virtual method table for one concrete type.
type vtable struct {
	baseType string
	methods  map[string]uint32 // method name -> node id
}

// VTableResolver resolves protocol/interface-method calls to all conforming
// implementations, feeding protocolWitness edges into the dependency graph.
// This matches PMAT's VTableResolver architecture for accurate dead code
// detection in languages with dynamic dispatch.
type VTableResolver struct {
	vtables        map[string]*vtable
	interfaceImpls map[string][]string // interface/protocol name -> implementing types
	mu             sync.RWMutex
}

// NewVTableResolver returns an empty VTableResolver.
func NewVTableResolver() *VTableResolver {
	return &VTableResolver{
		vtables:        make(map[string]*vtable),
		interfaceImpls: make(map[string][]string),
	}
}

// RegisterType registers a type's method table.
func (v *VTableResolver) RegisterType(typeName, baseType string, methods map[string]uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vtables[typeName] = &vtable{baseType: baseType, methods: methods}
}

// RegisterImplementation records that typeName implements interfaceName.
func (v *VTableResolver) RegisterImplementation(interfaceName, typeName string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.interfaceImpls[interfaceName] = append(v.interfaceImpls[interfaceName], typeName)
}

// ResolveDynamicCall returns the node ids of every conforming type's
// implementation of methodName, across all types implementing interfaceName.
func (v *VTableResolver) ResolveDynamicCall(interfaceName, methodName string) []uint32 {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var targets []uint32
	for _, implType := range v.interfaceImpls[interfaceName] {
		if vt, ok := v.vtables[implType]; ok {
			if nodeID, exists := vt.methods[methodName]; exists {
				targets = append(targets, nodeID)
			}
		}
	}
	return targets
}

// Copyright 2023 N4-Networks.com
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model holds the simulated device's data-model parameter map:
// a path -> (writable, value, xsd type) triple store, plus the identity
// fields and private state a CPE carries alongside it.
package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// XSD type tags recognized by the store.
const (
	XsdString   = "xsd:string"
	XsdBoolean  = "xsd:boolean"
	XsdInt      = "xsd:int"
	XsdUnsigned = "xsd:unsignedInt"
	XsdDateTime = "xsd:dateTime"
)

// Param is one data-model parameter: an object node (path ending in ".")
// carries only Writable; a leaf also carries Value/Type.
type Param struct {
	Writable bool
	Value    string
	Type     string
}

// private-state key prefix, excluded from GetParameterNames results.
const privatePrefix = "_"

// roots excluded from GetParameterNames regardless of the "_" prefix rule,
// per spec.md sec 4.2.
var excludedRoots = map[string]bool{
	"DeviceID":          true,
	"Downloads":         true,
	"Tags":              true,
	"Events":            true,
	"Reboot":            true,
	"FactoryReset":      true,
	"VirtualParameters": true,
}

// Store is the device parameter map. Safe for concurrent use, though in
// this simulator it is only ever mutated by the RPC handlers and the
// firmware-upgrade continuation, both of which run serially off the
// session engine (spec.md sec 5).
type Store struct {
	mu     sync.RWMutex
	params map[string]*Param

	sortedPaths []string
	sortedValid bool
}

// NewStore builds an empty store. Callers normally populate it via Load.
func NewStore() *Store {
	return &Store{params: make(map[string]*Param)}
}

// Load installs a template of parameters into the store, overwriting any
// existing entries at the same paths. It is the hook a data-model loader
// (out of scope per spec.md sec 1) would call at startup.
func (s *Store) Load(params map[string]Param) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, p := range params {
		cp := p
		s.params[path] = &cp
	}
	s.sortedValid = false
}

// Get returns the parameter at path and whether it exists.
func (s *Store) Get(path string) (Param, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.params[path]
	if !ok {
		return Param{}, false
	}
	return *p, true
}

// Set updates value and type for an existing leaf, or creates it if absent.
func (s *Store) Set(path, value, xsdType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.params[path]
	if !ok {
		p = &Param{Writable: true}
		s.params[path] = p
	}
	p.Value = value
	if xsdType != "" {
		p.Type = xsdType
	}
}

// SetWritable creates or overwrites a parameter's writable flag, used for
// object nodes which carry no value/type.
func (s *Store) SetWritable(path string, writable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.params[path]
	if !ok {
		p = &Param{}
		s.params[path] = p
	}
	p.Writable = writable
}

// Has reports whether an exact path exists.
func (s *Store) Has(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.params[path]
	return ok
}

// HasPrefix reports whether any key in the store starts with prefix.
func (s *Store) HasPrefix(prefix string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k := range s.params {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// AddObjectInstance picks the smallest positive instance number i such
// that objectName+i+"." does not already exist, creates one leaf under the
// new instance for every entry of templateLeaves (leaf suffix -> xsd type)
// with a type-appropriate zero value, and returns the new instance number.
// See spec.md sec 4.2 AddObject.
func (s *Store) AddObjectInstance(objectName string, templateLeaves map[string]string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := 1
	for {
		candidate := fmt.Sprintf("%s%d.", objectName, i)
		if _, exists := s.params[candidate]; !exists {
			break
		}
		i++
	}
	instancePrefix := fmt.Sprintf("%s%d.", objectName, i)
	s.params[instancePrefix] = &Param{Writable: true}

	for leaf, xsdType := range templateLeaves {
		s.params[instancePrefix+leaf] = &Param{
			Writable: true,
			Value:    defaultValueFor(xsdType),
			Type:     xsdType,
		}
	}

	s.sortedValid = false
	return i
}

// DeleteObject removes every key whose path starts with prefix.
func (s *Store) DeleteObject(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.params {
		if strings.HasPrefix(k, prefix) {
			delete(s.params, k)
		}
	}
	s.sortedValid = false
}

// defaultValueFor returns the type-appropriate default AddObject seeds a
// freshly instanced leaf with (spec.md sec 4.2).
func defaultValueFor(xsdType string) string {
	switch xsdType {
	case XsdBoolean:
		return "false"
	case XsdInt, XsdUnsigned:
		return "0"
	case XsdDateTime:
		return "0001-01-01T00:00:00Z"
	default:
		return ""
	}
}

// Names returns ParameterInfo-shaped (name, writable) pairs for every
// public path under prefix, applying the NextLevel restriction from
// GetParameterNames (spec.md sec 4.2). The sorted path list is cached and
// invalidated on AddObjectInstance/DeleteObject.
func (s *Store) Names(prefix string, nextLevel bool) []NameInfo {
	s.mu.Lock()
	paths := s.sortedPublicPathsLocked()
	s.mu.Unlock()

	var out []NameInfo
	for _, path := range paths {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if nextLevel && !isNextLevel(prefix, path) {
			continue
		}
		s.mu.RLock()
		p := s.params[path]
		s.mu.RUnlock()
		out = append(out, NameInfo{Name: path, Writable: p.Writable})
	}
	return out
}

// isNextLevel reports whether path is exactly one level below prefix: no
// further "." after the prefix, or path ends with a single trailing dot
// immediately after prefix (an object instance boundary).
func isNextLevel(prefix, path string) bool {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" {
		return true
	}
	trimmed := strings.TrimSuffix(rest, ".")
	return !strings.Contains(trimmed, ".")
}

// NameInfo mirrors ParameterInfoStruct (spec.md sec 4.2 / 6.1).
type NameInfo struct {
	Name     string
	Writable bool
}

// sortedPublicPathsLocked recomputes (if invalidated) and returns the
// sorted list of public parameter paths, excluding private keys and the
// well-known non-data-model roots. Caller must hold s.mu.
func (s *Store) sortedPublicPathsLocked() []string {
	if s.sortedValid {
		return s.sortedPaths
	}
	paths := make([]string, 0, len(s.params))
	for path := range s.params {
		if strings.HasPrefix(path, privatePrefix) {
			continue
		}
		if root := firstSegment(path); excludedRoots[root] {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	s.sortedPaths = paths
	s.sortedValid = true
	return paths
}

func firstSegment(path string) string {
	if i := strings.Index(path, "."); i >= 0 {
		return path[:i]
	}
	return path
}

// ParseBool centralizes xsd:boolean coercion for callers converting wire
// strings to Go values. The returned error already describes the
// offending parameter.
func ParseBool(name, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("parameter %s: invalid xsd:boolean %q: %w", name, value, err)
	}
	return b, nil
}

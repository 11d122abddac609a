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

package simulator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/n4-networks/cwmpsim/internal/download"
	"github.com/n4-networks/cwmpsim/internal/model"
	"github.com/n4-networks/cwmpsim/internal/soap"
)

// isoLayout matches spec.md sec 9's "ISO-8601 UTC with fractional seconds"
// wire timestamp format.
const isoLayout = "2006-01-02T15:04:05.000Z"

// buildInform assembles the Body elements for a session's opening Inform,
// appending a pending TransferComplete inside the same Body when one is
// queued (spec.md sec 4.2 Inform).
func (s *Simulator) buildInform(event string) []interface{} {
	if event == "" {
		event = soap.EventPeriodic
	}
	var events []soap.EventStruct
	for _, code := range strings.Split(event, ",") {
		events = append(events, soap.EventStruct{EventCode: code})
	}

	inform := &soap.Inform{
		DeviceId: soap.DeviceIdStruct{
			Manufacturer: s.cfg.Identity.Manufacturer,
			OUI:          s.cfg.Identity.OUI,
			ProductClass: s.cfg.Identity.ProductClass,
			SerialNumber: s.cfg.Identity.SerialNumber,
		},
		Event:        events,
		MaxEnvelopes: 1,
		CurrentTime:  time.Now().UTC().Format(isoLayout),
		RetryCount:   0,
	}
	for _, root := range model.DataModelRoots {
		for _, suffix := range model.InformParamSuffixes {
			path := root + suffix
			if p, ok := s.store.Get(path); ok {
				inform.ParameterList = append(inform.ParameterList, parameterValueStruct(path, p))
			}
		}
	}

	elements := []interface{}{inform}
	if rec, ok := s.transfers.dequeue(); ok {
		s.mu.Lock()
		s.transferCompleteSess = true
		s.mu.Unlock()
		elements = append(elements, transferCompleteFrom(rec))
	}
	return elements
}

func parameterValueStruct(name string, p model.Param) soap.ParameterValueStruct {
	return soap.ParameterValueStruct{
		Name:  name,
		Value: soap.ParamValue{Type: p.Type, Value: p.Value},
	}
}

// transferCompleteFrom builds the cwmp:TransferComplete body for rec
// (spec.md sec 6.1): FaultStruct is omitted for a clean completion.
func transferCompleteFrom(rec TransferRecord) *soap.TransferComplete {
	tc := &soap.TransferComplete{
		CommandKey:   rec.CommandKey,
		StartTime:    rec.StartTime.UTC().Format(isoLayout),
		CompleteTime: time.Now().UTC().Format(isoLayout),
	}
	if rec.FaultCode != "" && rec.FaultCode != "0" {
		tc.FaultStruct = &soap.FaultStruct{FaultCode: rec.FaultCode, FaultString: rec.FaultString}
	}
	return tc
}

func (s *Simulator) handleGetParameterValues(env *soap.Envelope) (interface{}, *soap.Fault) {
	var req soap.GetParameterValuesRequest
	if err := env.Decode(&req); err != nil {
		return nil, soap.NewFault(soap.FaultInvalidArguments, err.Error())
	}
	resp := &soap.GetParameterValuesResponse{}
	for _, name := range req.ParameterNames {
		if p, ok := s.store.Get(name); ok {
			resp.ParameterList = append(resp.ParameterList, parameterValueStruct(name, p))
		}
	}
	return resp, nil
}

func (s *Simulator) handleSetParameterValues(env *soap.Envelope) (interface{}, *soap.Fault) {
	var req soap.SetParameterValuesRequest
	if err := env.Decode(&req); err != nil {
		return nil, soap.NewFault(soap.FaultInvalidArguments, err.Error())
	}
	for _, pv := range req.ParameterList {
		s.store.Set(pv.Name, pv.Value.Value, pv.Value.Type)
	}
	return &soap.SetParameterValuesResponse{Status: 0}, nil
}

func (s *Simulator) handleGetParameterNames(env *soap.Envelope) (interface{}, *soap.Fault) {
	var req soap.GetParameterNamesRequest
	if err := env.Decode(&req); err != nil {
		return nil, soap.NewFault(soap.FaultInvalidArguments, err.Error())
	}
	resp := &soap.GetParameterNamesResponse{}
	for _, n := range s.parameterNames(req.ParameterPath, req.NextLevel) {
		resp.ParameterList = append(resp.ParameterList, soap.ParameterInfoStruct{Name: n.Name, Writable: n.Writable})
	}
	return resp, nil
}

// nameCacheKey identifies one (prefix, nextLevel) GetParameterNames query.
func nameCacheKey(prefix string, nextLevel bool) string {
	return fmt.Sprintf("%s\x00%v", prefix, nextLevel)
}

// parameterNames answers GetParameterNames from the fleet name cache when
// one is attached, falling back to (and repopulating from) model.Store
// (spec.md sec 4.2: "the sorted list is cached and invalidated on
// Add/Delete").
func (s *Simulator) parameterNames(prefix string, nextLevel bool) []model.NameInfo {
	s.mu.Lock()
	cache := s.nameCache
	s.mu.Unlock()
	if cache == nil {
		return s.store.Names(prefix, nextLevel)
	}

	ctx := context.Background()
	key := nameCacheKey(prefix, nextLevel)
	if cached, ok := cache.Get(ctx, key); ok {
		names := make([]model.NameInfo, 0, len(cached))
		for _, n := range cached {
			p, _ := s.store.Get(n)
			names = append(names, model.NameInfo{Name: n, Writable: p.Writable})
		}
		return names
	}

	names := s.store.Names(prefix, nextLevel)
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = n.Name
	}
	cache.Set(ctx, key, paths)
	return names
}

// invalidateNameCache drops every cached GetParameterNames result after a
// data-model-shape change (AddObject/DeleteObject).
func (s *Simulator) invalidateNameCache() {
	s.mu.Lock()
	cache := s.nameCache
	s.mu.Unlock()
	if cache != nil {
		cache.Invalidate(context.Background())
	}
}

// hostsHostSuffix marks the one instantiable object this simulator's
// default data model ships: LANDevice.1.Hosts.Host. (spec.md sec 3:
// "every leaf P.<name> defined in the template"). Other object names are
// still instanced as a bare writable node, just with no cloned leaves.
const hostsHostSuffix = "LANDevice.1.Hosts.Host."

func (s *Simulator) handleAddObject(env *soap.Envelope) (interface{}, *soap.Fault) {
	var req soap.AddObjectRequest
	if err := env.Decode(&req); err != nil {
		return nil, soap.NewFault(soap.FaultInvalidArguments, err.Error())
	}
	var leaves map[string]string
	if strings.HasSuffix(req.ObjectName, hostsHostSuffix) {
		leaves = model.HostTemplateLeaves()
	}
	i := s.store.AddObjectInstance(req.ObjectName, leaves)
	s.invalidateNameCache()
	return &soap.AddObjectResponse{InstanceNumber: uint32(i), Status: 0}, nil
}

func (s *Simulator) handleDeleteObject(env *soap.Envelope) (interface{}, *soap.Fault) {
	var req soap.DeleteObjectRequest
	if err := env.Decode(&req); err != nil {
		return nil, soap.NewFault(soap.FaultInvalidArguments, err.Error())
	}
	s.store.DeleteObject(req.ObjectName)
	s.invalidateNameCache()
	return &soap.DeleteObjectResponse{Status: 0}, nil
}

func (s *Simulator) handleDownload(env *soap.Envelope) (interface{}, *soap.Fault) {
	var req soap.DownloadRequest
	if err := env.Decode(&req); err != nil {
		return nil, soap.NewFault(soap.FaultInvalidArguments, err.Error())
	}

	dlReq := download.Request{
		CommandKey: req.CommandKey,
		URL:        req.URL,
		FileType:   req.FileType,
		Username:   req.Username,
		Password:   req.Password,
	}
	if code, msg, ok := download.Validate(dlReq); !ok {
		return nil, soap.NewFault(code, msg)
	}

	isFirmware := req.FileType == "1 Firmware Upgrade Image"
	if isFirmware {
		s.mu.Lock()
		already := s.downloadInProgress
		if !already {
			s.downloadInProgress = true
		}
		s.mu.Unlock()
		if already {
			return nil, soap.NewFault(soap.FaultDownloadFailure, "File transfer already in progress")
		}
	}

	resp := &soap.DownloadResponse{
		Status:       1,
		StartTime:    "0001-01-01T00:00:00Z",
		CompleteTime: "0001-01-01T00:00:00Z",
	}

	badScheme := !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://")

	worker := download.NewWorker(s)
	s.mu.Lock()
	s.activeDownload = worker
	s.mu.Unlock()
	worker.Start(dlReq, badScheme)

	return resp, nil
}

func (s *Simulator) handleReboot(env *soap.Envelope) (interface{}, *soap.Fault) {
	s.mu.Lock()
	active := s.activeDownload
	s.mu.Unlock()
	if active != nil {
		active.Cancel()
	}
	s.mu.Lock()
	s.pendingReboot = true
	s.mu.Unlock()
	return &soap.RebootResponse{}, nil
}

func (s *Simulator) handleFactoryReset(env *soap.Envelope) (interface{}, *soap.Fault) {
	time.AfterFunc(500*time.Millisecond, func() {
		os.Exit(0)
	})
	return &soap.FactoryResetResponse{}, nil
}

// bumpSoftwareVersion updates DeviceInfo.SoftwareVersion on both
// data-model roots after a completed firmware upgrade (spec.md sec 4.1).
func (s *Simulator) bumpSoftwareVersion() {
	for _, root := range model.DataModelRoots {
		s.store.Set(root+"DeviceInfo.SoftwareVersion", "2.0.0-upgraded", model.XsdString)
	}
}

package sampledb

import (
	"context"
	"sort"

	"github.com/wgdzlh/sampledb/log"

	"go.uber.org/zap"
)

// ClassResolver validates the distinct classes of a source against the
// classes registered in a classification system. Unregistered classes are
// never created here.
type ClassResolver struct {
	store  Store
	system *int64
	logTag string
}

func NewClassResolver(store Store, system *int64) *ClassResolver {
	return &ClassResolver{
		store:  store,
		system: system,
		logTag: "ClassResolver:",
	}
}

// SystemID returns the explicit classification system, else the store default.
func (r *ClassResolver) SystemID() (id int64, err error) {
	if r.system != nil {
		id = *r.system
		return
	}
	if r.store != nil {
		if def, ok := r.store.DefaultSystem(); ok {
			id = def
			return
		}
	}
	err = &ConfigError{Err: ErrNoSystem}
	return
}

// Validate fails with a *ValidationError naming every class not registered
// in the classification system.
func (r *ClassResolver) Validate(ctx context.Context, classes []string) (err error) {
	systemID, err := r.SystemID()
	if err != nil {
		return
	}
	if r.store == nil {
		return &ConfigError{Err: ErrNoStore}
	}
	registered, err := r.store.LoadClasses(ctx, systemID)
	if err != nil {
		log.Error(r.logTag+"load classes failed", zap.Int64("system", systemID), zap.Error(err))
		return
	}
	known := make(map[string]struct{}, len(registered))
	for _, c := range registered {
		known[c.Name] = struct{}{}
	}
	var unregistered []string
	for _, c := range distinct(classes) {
		if _, ok := known[c]; !ok {
			unregistered = append(unregistered, c)
		}
	}
	if len(unregistered) > 0 {
		sort.Strings(unregistered)
		log.Warn(r.logTag+"unregistered classes", zap.Int64("system", systemID), zap.Strings("classes", unregistered))
		return &ValidationError{SystemID: systemID, Unregistered: unregistered}
	}
	log.Info(r.logTag+"classes validated", zap.Int64("system", systemID), zap.Int("cnt", len(known)))
	return
}

// distinct keeps the first occurrence of every value.
func distinct(values []string) (ret []string) {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ret = append(ret, v)
	}
	return
}

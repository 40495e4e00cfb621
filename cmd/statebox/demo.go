package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/tailored-agentic-units/statebox/deferred"
	"github.com/tailored-agentic-units/statebox/store"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

var directory = map[int]user{
	1: {ID: 1, Name: "Ada Lovelace"},
	2: {ID: 2, Name: "Grace Hopper"},
}

const lookupLatency = 50 * time.Millisecond

func lookupUser(id int) *deferred.Future[any] {
	return deferred.Go(func() (any, error) {
		time.Sleep(lookupLatency)
		u, ok := directory[id]
		if !ok {
			return nil, fmt.Errorf("user %d not found", id)
		}
		return u, nil
	})
}

// number accepts the float64 produced by JSON decoding as well as int.
func number(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	case nil:
		return 0, errors.New("missing number")
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func demoMutators() store.Mutators {
	return store.Mutators{
		"counter": {
			InitialState: func() store.SubtreeState {
				return store.SubtreeState{"value": 0}
			},
			Actions: map[string]store.ActionFunc{
				"increment": func(st store.SubtreeState, _ any) (store.ActionResult, error) {
					return store.ActionResult{
						Changes: store.Changes{}.Set("value", st["value"].(int)+1),
					}, nil
				},
				"add": func(st store.SubtreeState, param any) (store.ActionResult, error) {
					n, err := number(param)
					if err != nil {
						return store.ActionResult{}, err
					}
					return store.ActionResult{
						Changes: store.Changes{}.Set("value", st["value"].(int)+n),
					}, nil
				},
			},
		},
		"user": {
			InitialState: func() store.SubtreeState {
				return store.SubtreeState{"user": nil, "loading": false, "error": ""}
			},
			Actions: map[string]store.ActionFunc{
				"fetchUser": func(_ store.SubtreeState, param any) (store.ActionResult, error) {
					id, err := number(param)
					if err != nil {
						return store.ActionResult{}, err
					}
					return store.ActionResult{
						Changes: store.Changes{}.Set("loading", true).Set("error", ""),
						Async: &store.Async{
							SideEffect: func() *deferred.Future[any] { return lookupUser(id) },
							Success: func(_ store.SubtreeState, u any) (store.ActionResult, error) {
								return store.ActionResult{
									Changes: store.Changes{}.Set("loading", false).Set("user", u),
								}, nil
							},
							Failure: func(_ store.SubtreeState, err error) (store.ActionResult, error) {
								return store.ActionResult{
									Changes: store.Changes{}.Set("loading", false).Set("error", err.Error()),
								}, nil
							},
						},
					}, nil
				},
			},
		},
	}
}

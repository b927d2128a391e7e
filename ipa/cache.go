package ipa

import (
	"container/list"
	"sync"
)

// cacheCapacity bounds the phonemizer's memoisation cache (spec §4.3:
// approximately-LRU, 2,000 entries).
const cacheCapacity = 2000

type cacheKey struct {
	fp   uint64
	text string // always stored, so two inputs with the same fingerprint remain distinct keys
}

type cacheEntry struct {
	key    cacheKey
	result string
}

// phonemeCache is an approximately-LRU cache guarding Phonemize lookups with
// a mutex, the same synchronized-singleton discipline used elsewhere for
// process-lifetime caches.
type phonemeCache struct {
	mu    sync.RWMutex
	order *list.List
	items map[cacheKey]*list.Element
}

var cache = &phonemeCache{
	order: list.New(),
	items: make(map[cacheKey]*list.Element, cacheCapacity),
}

func makeKey(text string) cacheKey {
	return cacheKey{fp: fingerprint(text), text: text}
}

func cacheGet(text string) (string, bool) {
	k := makeKey(text)
	cache.mu.RLock()
	el, ok := cache.items[k]
	cache.mu.RUnlock()
	if !ok {
		return "", false
	}
	cache.mu.Lock()
	cache.order.MoveToFront(el)
	cache.mu.Unlock()
	return el.Value.(*cacheEntry).result, true
}

func cachePut(text, result string) {
	k := makeKey(text)
	cache.mu.Lock()
	defer cache.mu.Unlock()

	if el, ok := cache.items[k]; ok {
		cache.order.MoveToFront(el)
		el.Value.(*cacheEntry).result = result
		return
	}

	el := cache.order.PushFront(&cacheEntry{key: k, result: result})
	cache.items[k] = el

	if cache.order.Len() > cacheCapacity {
		oldest := cache.order.Back()
		if oldest != nil {
			cache.order.Remove(oldest)
			delete(cache.items, oldest.Value.(*cacheEntry).key)
		}
	}
}

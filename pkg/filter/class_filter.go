// Package filter classifies Java class names for heap histograms.
//
// Names are the ones a heap snapshot carries: dotted class names and JVM
// descriptors for arrays ("[C", "[[I", "[Ljava.lang.String;").
package filter

import (
	"hash/maphash"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/elastic/go-freelru"
)

// ClassCategory represents the category of a class.
type ClassCategory int

const (
	// CategoryUnknown indicates the class category is unknown.
	CategoryUnknown ClassCategory = iota
	// CategoryPrimitive indicates primitive arrays of any dimension.
	CategoryPrimitive
	// CategoryJDK indicates JDK internal classes.
	CategoryJDK
	// CategoryFramework indicates framework internal classes.
	CategoryFramework
	// CategoryApplication indicates application-level classes (including framework beans).
	CategoryApplication
	// CategoryBusiness indicates classes under a configured business prefix.
	CategoryBusiness
)

// String returns the string representation of the category.
func (c ClassCategory) String() string {
	switch c {
	case CategoryPrimitive:
		return "primitive"
	case CategoryJDK:
		return "jdk"
	case CategoryFramework:
		return "framework"
	case CategoryApplication:
		return "application"
	case CategoryBusiness:
		return "business"
	default:
		return "unknown"
	}
}

// IsApplicationLevel reports whether c is neither JDK, framework nor
// primitive.
func (c ClassCategory) IsApplicationLevel() bool {
	return c == CategoryApplication || c == CategoryBusiness
}

const primitiveSignatures = "ZCFDBSIJ"

// DefaultCacheSize is the number of classifications a filter remembers.
const DefaultCacheSize = 8192

// Built-in rules. Framework internals are the deep plumbing of common
// libraries, almost never the root cause of heap growth.
var (
	jdkPrefixes = []string{
		"java.", "javax.", "sun.", "com.sun.", "jdk.",
		"dalvik.", "libcore.", "android.",
	}
	frameworkPrefixes = []string{
		"org.springframework.aop.framework.",
		"org.springframework.beans.factory.support.",
		"org.springframework.util.ConcurrentReferenceHashMap",
		"io.netty.buffer.Pool",
		"io.netty.util.internal.",
		"io.netty.util.Recycler",
		"com.google.common.collect.",
		"com.google.common.cache.",
		"org.slf4j.impl.",
		"ch.qos.logback.",
		"com.fasterxml.jackson.core.json.",
		"com.fasterxml.jackson.databind.cfg.",
		"com.fasterxml.jackson.databind.introspect.",
		"net.bytebuddy.",
		"io.opentelemetry.javaagent.",
		"kotlin.jvm.internal.",
	}
)

// cached is a classification stamped with the rule generation it was
// computed under.
type cached struct {
	category   ClassCategory
	generation uint64
}

var hashSeed = maphash.MakeSeed()

func hashName(s string) uint32 {
	return uint32(maphash.String(hashSeed, s))
}

// ClassFilter classifies class names. It is safe for concurrent use.
type ClassFilter struct {
	mu               sync.RWMutex
	businessPrefixes []string

	// generation advances whenever the rules change; older cache entries
	// are ignored.
	generation atomic.Uint64
	cache      *freelru.SyncedLRU[string, cached]
}

// NewClassFilter creates a filter with the built-in rules and a cache of
// DefaultCacheSize names.
func NewClassFilter() *ClassFilter {
	return NewClassFilterWithCache(DefaultCacheSize)
}

// NewClassFilterWithCache creates a filter remembering up to size names.
// A size below 1 disables the cache.
func NewClassFilterWithCache(size int) *ClassFilter {
	f := &ClassFilter{}
	if size > 0 {
		// Only a zero capacity makes NewSynced fail.
		f.cache, _ = freelru.NewSynced[string, cached](uint32(size), hashName)
	}
	return f
}

// Classify returns the category of a class.
func (f *ClassFilter) Classify(className string) ClassCategory {
	if className == "" {
		return CategoryUnknown
	}

	gen := f.generation.Load()
	if f.cache != nil {
		if c, ok := f.cache.Get(className); ok && c.generation == gen {
			return c.category
		}
	}

	f.mu.RLock()
	cat := classify(className, f.businessPrefixes)
	f.mu.RUnlock()

	if f.cache != nil {
		f.cache.Add(className, cached{category: cat, generation: gen})
	}
	return cat
}

// classify resolves array descriptors to their element type and applies
// the prefix rules, business prefixes first.
func classify(className string, business []string) ClassCategory {
	name := strings.TrimLeft(className, "[")
	if name != className {
		switch {
		case name == "":
			return CategoryUnknown
		case len(name) == 1 && strings.Contains(primitiveSignatures, name):
			return CategoryPrimitive
		case strings.HasPrefix(name, "L") && strings.HasSuffix(name, ";"):
			name = name[1 : len(name)-1]
		}
	}

	switch {
	case hasAnyPrefix(name, business):
		return CategoryBusiness
	case hasAnyPrefix(name, jdkPrefixes):
		return CategoryJDK
	case hasAnyPrefix(name, frameworkPrefixes):
		return CategoryFramework
	}
	return CategoryApplication
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// IsApplicationLevel returns true if the class is application-level (not
// JDK, framework internal or primitive).
func (f *ClassFilter) IsApplicationLevel(className string) bool {
	return f.Classify(className).IsApplicationLevel()
}

// AddBusinessPrefixes adds package prefixes of business classes. Business
// prefixes win over the built-in JDK and framework rules. Empty and
// repeated prefixes are ignored.
func (f *ClassFilter) AddBusinessPrefixes(prefixes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	changed := false
	for _, prefix := range prefixes {
		if prefix == "" || contains(f.businessPrefixes, prefix) {
			continue
		}
		f.businessPrefixes = append(f.businessPrefixes, prefix)
		changed = true
	}
	if changed {
		f.generation.Add(1)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// BusinessPrefixes returns the configured business prefixes.
func (f *ClassFilter) BusinessPrefixes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.businessPrefixes...)
}

// CacheLen returns the number of cached classifications.
func (f *ClassFilter) CacheLen() int {
	if f.cache == nil {
		return 0
	}
	return f.cache.Len()
}

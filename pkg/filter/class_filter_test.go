package filter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassFilter_Classify(t *testing.T) {
	f := NewClassFilter()

	tests := []struct {
		className string
		expected  ClassCategory
	}{
		{"", CategoryUnknown},

		// Primitive arrays
		{"[B", CategoryPrimitive},
		{"[C", CategoryPrimitive},
		{"[I", CategoryPrimitive},
		{"[[J", CategoryPrimitive},
		{"[", CategoryUnknown},

		// JDK classes
		{"java.lang.String", CategoryJDK},
		{"java.util.HashMap", CategoryJDK},
		{"java.util.concurrent.ConcurrentHashMap$Node", CategoryJDK},
		{"javax.servlet.Servlet", CategoryJDK},
		{"sun.misc.Unsafe", CategoryJDK},
		{"com.sun.proxy.$Proxy0", CategoryJDK},
		{"jdk.internal.misc.Unsafe", CategoryJDK},
		{"dalvik.system.PathClassLoader", CategoryJDK},

		// Object arrays follow their element class
		{"[Ljava.lang.String;", CategoryJDK},
		{"[[Ljava.lang.Object;", CategoryJDK},
		{"[Lcom.example.Node;", CategoryApplication},

		// Framework internals
		{"org.springframework.aop.framework.ProxyFactory", CategoryFramework},
		{"io.netty.buffer.PoolArena", CategoryFramework},
		{"com.google.common.collect.ImmutableList", CategoryFramework},
		{"[Lio.netty.util.internal.InternalThreadLocalMap;", CategoryFramework},

		// Application-level classes
		{"org.springframework.web.servlet.DispatcherServlet", CategoryApplication},
		{"io.netty.channel.ChannelHandler", CategoryApplication},
		{"com.example.MyService", CategoryApplication},

		// Malformed descriptors are treated as plain names
		{"[Xfoo", CategoryApplication},
	}

	for _, tt := range tests {
		t.Run(tt.className, func(t *testing.T) {
			assert.Equal(t, tt.expected, f.Classify(tt.className))
		})
	}
}

func TestClassCategory_String(t *testing.T) {
	tests := []struct {
		cat  ClassCategory
		want string
	}{
		{CategoryUnknown, "unknown"},
		{CategoryPrimitive, "primitive"},
		{CategoryJDK, "jdk"},
		{CategoryFramework, "framework"},
		{CategoryApplication, "application"},
		{CategoryBusiness, "business"},
		{ClassCategory(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cat.String())
	}
}

func TestClassFilter_IsApplicationLevel(t *testing.T) {
	f := NewClassFilter()

	assert.False(t, f.IsApplicationLevel("[C"))
	assert.False(t, f.IsApplicationLevel("java.lang.String"))
	assert.False(t, f.IsApplicationLevel("io.netty.util.Recycler$Stack"))
	assert.True(t, f.IsApplicationLevel("com.example.Node"))
	assert.True(t, f.IsApplicationLevel("[Lcom.example.Node;"))
}

func TestClassFilter_BusinessPrefixes(t *testing.T) {
	f := NewClassFilter()

	assert.Equal(t, CategoryApplication, f.Classify("com.mycompany.OrderService"))
	assert.Equal(t, CategoryJDK, f.Classify("java.util.Patched"))

	f.AddBusinessPrefixes([]string{"com.mycompany.", "java.util.Patched", "com.mycompany.", ""})
	assert.Equal(t, []string{"com.mycompany.", "java.util.Patched"}, f.BusinessPrefixes())

	// Cached answers from before the change are not reused.
	assert.Equal(t, CategoryBusiness, f.Classify("com.mycompany.OrderService"))
	assert.Equal(t, CategoryBusiness, f.Classify("java.util.Patched"))
	assert.Equal(t, CategoryBusiness, f.Classify("[Lcom.mycompany.OrderService;"))
	assert.True(t, f.IsApplicationLevel("com.mycompany.OrderService"))
}

func TestClassFilter_Cache(t *testing.T) {
	f := NewClassFilterWithCache(2)
	f.Classify("a.A")
	f.Classify("b.B")
	f.Classify("c.C")
	assert.Equal(t, 2, f.CacheLen())
	assert.Equal(t, CategoryApplication, f.Classify("a.A"))

	uncached := NewClassFilterWithCache(0)
	assert.Equal(t, CategoryJDK, uncached.Classify("java.lang.Object"))
	assert.Zero(t, uncached.CacheLen())
}

func TestClassFilter_Concurrent(t *testing.T) {
	f := NewClassFilter()
	names := []string{"[C", "java.lang.String", "com.example.Node", "[Lcom.example.Node;"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				f.AddBusinessPrefixes([]string{"com.example."})
			}
			for _, n := range names {
				f.Classify(n)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, CategoryBusiness, f.Classify("com.example.Node"))
	assert.Equal(t, CategoryPrimitive, f.Classify("[C"))
}

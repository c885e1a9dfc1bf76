package httpmiddleware

import "testing"

func TestTokenBucketExhausts(t *testing.T) {
	l := NewSimpleTokenBucket(3, 3)
	for i := 0; i < 3; i++ {
		if !l.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.allow("1.2.3.4") {
		t.Fatal("request over capacity should be denied")
	}
}

func TestTokenBucketPerKey(t *testing.T) {
	l := NewSimpleTokenBucket(1, 1)
	if !l.allow("a") {
		t.Fatal("first request for a should pass")
	}
	if !l.allow("b") {
		t.Fatal("other keys have their own buckets")
	}
	if l.allow("a") {
		t.Fatal("a is exhausted")
	}
}

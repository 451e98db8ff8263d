package http

import "net/http"

// BuyerHeader carries the authenticated buyer id set by the upstream gateway.
const BuyerHeader = "X-Buyer-ID"

// BuyerResolver identifies the buyer making a request. An empty result means
// the request is unauthenticated.
type BuyerResolver interface {
	ResolveBuyer(r *http.Request) string
}

// BuyerResolverFunc adapts a function to BuyerResolver.
type BuyerResolverFunc func(r *http.Request) string

func (f BuyerResolverFunc) ResolveBuyer(r *http.Request) string {
	return f(r)
}

// HeaderBuyerResolver trusts BuyerHeader.
type HeaderBuyerResolver struct{}

func (HeaderBuyerResolver) ResolveBuyer(r *http.Request) string {
	return r.Header.Get(BuyerHeader)
}

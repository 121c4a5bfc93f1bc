package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkellner/storefront-engine/money"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestList(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products", r.URL.Path)
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"products":[
			{"_id":"p1","name":"Desk Lamp","price":19.99,"brand":"Lumen","inStock":true},
			{"_id":"p2","name":"Notebook","price":4.50}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, nopLogger())
	products, err := client.List(context.Background(), ListParams{Category: "office", Page: 2, Limit: 20})
	require.NoError(t, err)

	require.Len(t, products, 2)
	assert.Equal(t, "Desk Lamp", products[0].Name)
	assert.True(t, products[0].InStock)
	assert.Contains(t, gotQuery, "category=office")
	assert.Contains(t, gotQuery, "page=2")
	assert.Contains(t, gotQuery, "limit=20")
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products/p1", r.URL.Path)
		_, _ = w.Write([]byte(`{"_id":"p1","name":"Desk Lamp","price":19.99,"image":"/lamp.jpg","brand":"Lumen"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, nopLogger())
	product, err := client.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", product.Name)
	assert.Equal(t, 19.99, product.Price)
}

func TestGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, nopLogger())
	_, err := client.Get(context.Background(), "missing")
	assert.ErrorContains(t, err, "not found")
}

func TestSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{"products":[{"_id":"p1","name":"Desk Lamp","price":19.99}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, nopLogger())
	products, err := client.Search(context.Background(), "desk lamp")
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, "desk lamp", gotQuery)
}

func TestListRetriesTransientFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"products":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, nopLogger())
	_, err := client.List(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "reads may retry transient upstream failures")
}

func TestProductToLineItem(t *testing.T) {
	p := Product{
		ID:    "p1",
		Name:  "Desk Lamp",
		Price: 19.99,
		Image: "/lamp.jpg",
		Brand: "Lumen",
	}

	item := p.LineItem(3)
	assert.Equal(t, "p1", item.ProductID)
	assert.Equal(t, money.Cents(1999), item.UnitPrice)
	assert.Equal(t, 3, item.Quantity)
	assert.Equal(t, "/lamp.jpg", item.ImageURL)
	assert.Equal(t, "Lumen", item.Brand)
}

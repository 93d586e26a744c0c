package protocodec_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"

	"github.com/anirudhraja/protocodec"
	"github.com/anirudhraja/protocodec/field"
	"github.com/anirudhraja/protocodec/message"
	"github.com/anirudhraja/protocodec/scalar"
)

type SearchRequest struct {
	Query         string
	PageNumber    int32
	ResultPerPage int32
}

var SearchRequestCodec = message.New([]field.Field[SearchRequest]{
	field.Singular(1, scalar.String, func(m *SearchRequest) *string { return &m.Query }, field.Named("query")),
	field.Singular(2, scalar.Int32, func(m *SearchRequest) *int32 { return &m.PageNumber }, field.Named("page_number")),
	field.Singular(3, scalar.Int32, func(m *SearchRequest) *int32 { return &m.ResultPerPage }, field.Named("result_per_page")),
}, message.Named("SearchRequest"))

func ExampleEncode() {
	b, err := protocodec.Encode[SearchRequest](SearchRequestCodec, SearchRequest{Query: "foo", PageNumber: 3, ResultPerPage: 10})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(b)

	v, err := protocodec.Decode[SearchRequest](SearchRequestCodec, b)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%+v\n", v)
	// Output:
	// [10 3 102 111 111 16 3 24 10]
	// {Query:foo PageNumber:3 ResultPerPage:10}
}

func ExampleDecoding() {
	d := protocodec.NewDecoding(SearchRequestCodec.NewDecoder())
	chunks := [][]byte{{10, 3, 102}, {111, 111, 24}, {10}}
	for i, chunk := range chunks {
		res, err := d.Feed(chunk, i == len(chunks)-1)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(res.Status, res.Consumed)
	}
	fmt.Printf("%+v\n", d.Value())
	// Output:
	// suspended 3
	// suspended 3
	// complete 1
	// {Query:foo PageNumber:0 ResultPerPage:10}
}

func ExampleEncoding() {
	e := protocodec.NewEncoding(SearchRequestCodec.NewEncoder(SearchRequest{Query: "foo", ResultPerPage: 10}))
	buf := make([]byte, 4)
	for {
		res, err := e.Drain(buf)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(res.Status, buf[:res.Consumed])
		if res.Status == protocodec.Complete {
			break
		}
	}
	// Output:
	// suspended [10 3 102 111]
	// complete [111 24 10]
}

func ExampleNewDelimitedReader() {
	ctx := context.Background()
	cfg := protocodec.DefaultConfig()

	var stream bytes.Buffer
	for _, q := range []string{"alpha", "beta"} {
		if err := protocodec.WriteDelimited[SearchRequest](ctx, &stream, SearchRequestCodec, SearchRequest{Query: q}, cfg); err != nil {
			log.Fatal(err)
		}
	}

	r := protocodec.NewDelimitedReader[SearchRequest](&stream, SearchRequestCodec, cfg)
	for {
		v, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(v.Query)
	}
	// Output:
	// alpha
	// beta
}

// Package tsclient is a Go client for a Typesense-compatible search service.
//
// It talks to one or more search nodes over HTTP, fails over between them and
// exposes the service's resources as small typed services:
//
//	client, _ := tsclient.New(
//	    tsclient.WithNodes("http://localhost:8108"),
//	    tsclient.WithAPIKey("xyz"),
//	)
//	_, _ = client.Collections().Create(ctx, tsclient.CollectionSchema{
//	    Name: "books",
//	    Fields: []tsclient.Field{
//	        {Name: "title", Type: tsclient.FieldString},
//	        {Name: "embedding", Type: tsclient.FieldFloatArray, NumDim: 384},
//	    },
//	})
//	res, _ := client.Search("books").Query(ctx, &tsclient.SearchParameters{
//	    Q: "harry", QueryBy: "title",
//	})
//
// # Vector queries
//
// Nearest-neighbor clauses are modelled by VectorQuery, which parses and
// renders the `field:([v1, v2], k:10, ...)` syntax of the vector_query
// parameter:
//
//	vq, _ := tsclient.ParseVectorQuery("embedding:([0.1, 0.2, 0.3], k:5)")
//	res, _ := client.Search("books").NearVector(ctx, vq, nil)
//
// # Typed access
//
//	type Book struct {
//	    ID    string `json:"id"`
//	    Title string `json:"title"`
//	}
//
//	idx := tsclient.NewIndex[Book](client, "books")
//	hits, _ := idx.Search().Query("harry").By("title").PerPage(5).Do(ctx)
package tsclient

// Package schema describes the JSON documents Sentinel asks generative
// models to return.
//
// A JSON value is sent with a completion request as the response contract
// and then used to check the answer:
//
//	details := schema.Object(map[string]schema.JSON{
//	    "description": schema.String(),
//	    "cvss": schema.Object(map[string]schema.JSON{
//	        "score":  schema.Number().Between(0, 10),
//	        "vector": schema.String(),
//	    }, "score", "vector"),
//	}, "description", "cvss")
//
//	if err := details.ValidateJSON(body); err != nil {
//	    // the model ignored the contract
//	}
//
// FromType builds the same kind of schema from a tagged Go struct.
package schema

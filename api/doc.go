/*
Package api defines the JSON wire format of the registration service and the
helpers its HTTP handlers share.

Requests mirror interfaces.RegistrationRequest with snake_case fields. Token
ids and amounts are decimal or 0x-prefixed hex strings so that values above
2^53 survive JavaScript clients. Percentages stay plain 0-100 numbers.

The handlers live in subpackages:

  - workflowhandler - Validation and unsigned call data preparation
  - metadatahandler - Publishing and serving IP metadata documents

A minimal prepare body:

	{
	  "requests": [
	    {"mint": {"spg_nft_contract": "0xc32A8a0FF3beDDDa58393d022aF433e78739FAbc"}},
	    {"nft": {"contract": "0xc32A8a0FF3beDDDa58393d022aF433e78739FAbc", "token_id": "12"},
	     "metadata": {"ip_metadata_uri": "ipfs://bafy..."}}
	  ],
	  "options": {"continue_on_failure": true}
	}
*/
package api

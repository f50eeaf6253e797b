// Package settings loads the hot-reloadable settings document.
//
// The document is JSON. It either describes a single instance, in which case
// the document itself is that instance's settings file, or it lists instances
// under an "Instances" key:
//
//	{
//	  "Instances": [
//	    { "Settings": "accounts/alice.json", "Alias": "alice" },
//	    { "Settings": "accounts/bob.json",   "Alias": "bob" }
//	  ],
//	  "TelegramMessenger": {
//	    "Active": true,
//	    "API": "123:abc",
//	    "ChatId": "42",
//	    "TelegramAutoPing": { "Active": true, "EveryHours": 6 }
//	  }
//	}
//
// The presence of "Instances" is the only discriminant; "Instances": null is
// a multi-instance document with no instances. Parse produces a typed
// Document in one pass and collects every malformed entry into
// Document.Malformed instead of failing; only an unreadable document or an
// "Instances" value that is neither an array nor null is an error.
package settings

package kernel

// Typed identifiers shared across bounded contexts. Keeping them here
// avoids import cycles between domain packages.

type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

type ConsumerID string

func NewConsumerID(id string) ConsumerID { return ConsumerID(id) }
func (c ConsumerID) String() string      { return string(c) }
func (c ConsumerID) IsEmpty() bool       { return string(c) == "" }

type TokenID string

func NewTokenID(id string) TokenID { return TokenID(id) }
func (t TokenID) String() string   { return string(t) }
func (t TokenID) IsEmpty() bool    { return string(t) == "" }

type KeyID string

func NewKeyID(id string) KeyID { return KeyID(id) }
func (k KeyID) String() string { return string(k) }
func (k KeyID) IsEmpty() bool  { return string(k) == "" }

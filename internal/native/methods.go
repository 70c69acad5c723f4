package native

// Method selectors understood by the native layer.
const (
	MethodInitialize                    = "initialize"
	MethodLogin                         = "login"
	MethodLoginWithJWT                  = "loginWithJwtBearerToken"
	MethodLogout                        = "logout"
	MethodSetConsentRequired            = "setConsentRequired"
	MethodSetConsentGiven               = "setConsentGiven"
	MethodSetLaunchURLsInApp            = "setLaunchURLsInApp"
	MethodGetNativeSDKVersion           = "getNativeSDKVersion"
	MethodAddObserver                   = "addObserver"
	MethodRemoveObserver                = "removeObserver"
	MethodNotificationsPermission       = "notificationsGetPermission"
	MethodNotificationsPermissionNative = "notificationsGetPermissionNative"
	MethodNotificationsCanRequest       = "notificationsCanRequestPermission"
	MethodNotificationsRequest          = "notificationsRequestPermission"
	MethodNotificationsClearAll         = "notificationsClearAll"
	MethodNotificationsRemove           = "notificationsRemoveNotification"
	MethodNotificationsRemoveGroup      = "notificationsRemoveGroupedNotifications"
	MethodNotificationsPrevent          = "notificationsWillDisplayEventPreventDefault"
	MethodNotificationsDisplay          = "notificationsDisplay"

	MethodUserSetLanguage    = "userSetLanguage"
	MethodUserAddTag         = "userAddTag"
	MethodUserAddTags        = "userAddTags"
	MethodUserRemoveTag      = "userRemoveTag"
	MethodUserRemoveTags     = "userRemoveTags"
	MethodUserGetTags        = "userGetTags"
	MethodUserAddAlias       = "userAddAlias"
	MethodUserAddAliases     = "userAddAliases"
	MethodUserRemoveAlias    = "userRemoveAlias"
	MethodUserRemoveAliases  = "userRemoveAliases"
	MethodUserAddEmail       = "userAddEmail"
	MethodUserRemoveEmail    = "userRemoveEmail"
	MethodUserAddSms         = "userAddSms"
	MethodUserRemoveSms      = "userRemoveSms"
	MethodUserGetOneSignalID = "userGetOneSignalId"
	MethodUserGetExternalID  = "userGetExternalId"

	MethodPushSubscriptionID      = "pushSubscriptionGetId"
	MethodPushSubscriptionToken   = "pushSubscriptionGetToken"
	MethodPushSubscriptionOptedIn = "pushSubscriptionGetOptedIn"
	MethodPushSubscriptionOptIn   = "pushSubscriptionOptIn"
	MethodPushSubscriptionOptOut  = "pushSubscriptionOptOut"

	MethodInAppSetPaused      = "inAppMessagesSetPaused"
	MethodInAppGetPaused      = "inAppMessagesGetPaused"
	MethodInAppAddTrigger     = "inAppMessagesAddTrigger"
	MethodInAppAddTriggers    = "inAppMessagesAddTriggers"
	MethodInAppRemoveTrigger  = "inAppMessagesRemoveTrigger"
	MethodInAppRemoveTriggers = "inAppMessagesRemoveTriggers"
	MethodInAppClearTriggers  = "inAppMessagesClearTriggers"

	MethodLiveActivityEnter = "enterLiveActivity"
	MethodLiveActivityExit  = "exitLiveActivity"

	MethodSessionAddOutcome          = "sessionAddOutcome"
	MethodSessionAddUniqueOutcome    = "sessionAddUniqueOutcome"
	MethodSessionAddOutcomeWithValue = "sessionAddOutcomeWithValue"

	MethodLocationSetShared         = "locationSetShared"
	MethodLocationGetShared         = "locationGetShared"
	MethodLocationRequestPermission = "locationRequestPermission"

	MethodDebugSetLogLevel   = "debugSetLogLevel"
	MethodDebugSetAlertLevel = "debugSetAlertLevel"

	// Legacy delegate API, answered with {"delegate_id","response"} envelopes.
	MethodLegacySetEmail          = "setEmail"
	MethodLegacyLogoutEmail       = "logoutEmail"
	MethodLegacySetSMSNumber      = "setSMSNumber"
	MethodLegacyPostNotification  = "postNotification"
	MethodLegacyGetTags           = "getTags"
	MethodLegacySetExternalUserID = "setExternalUserId"
	MethodLegacyIDsAvailable      = "idsAvailable"
	MethodLegacySendOutcome       = "sendOutcome"
	MethodLegacySendUniqueOutcome = "sendUniqueOutcome"
	MethodLegacySendOutcomeValue  = "sendOutcomeWithValue"
)

// Event names passed to Receiver.DeliverEvent. Each is also the name of the
// observer stream it feeds.
const (
	EventPermissionChanged       = "permissionChanged"
	EventNotificationWillDisplay = "notificationWillDisplay"
	EventNotificationClicked     = "notificationClicked"
	EventUserStateChanged        = "userStateChanged"
	EventPushSubscriptionChanged = "pushSubscriptionChanged"
	EventInAppWillDisplay        = "inAppMessageWillDisplay"
	EventInAppDidDisplay         = "inAppMessageDidDisplay"
	EventInAppWillDismiss        = "inAppMessageWillDismiss"
	EventInAppDidDismiss         = "inAppMessageDidDismiss"
	EventInAppClicked            = "inAppMessageClicked"
)

// Events lists every event name the native layer may deliver.
var Events = []string{
	EventPermissionChanged,
	EventNotificationWillDisplay,
	EventNotificationClicked,
	EventUserStateChanged,
	EventPushSubscriptionChanged,
	EventInAppWillDisplay,
	EventInAppDidDisplay,
	EventInAppWillDismiss,
	EventInAppDidDismiss,
	EventInAppClicked,
}
